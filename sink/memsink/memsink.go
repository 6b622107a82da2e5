// Package memsink implements an in-process stream.TopEndSink, for tests
// and for embedding the export stream in a single process without a
// durable top end.
package memsink

import (
	"sync"

	"go.exportstream.dev/core/stream"
)

// Buffer is one block handed off by a TupleStream, captured in memory.
// EndOfStream entries carry a nil Block, mirroring the wire contract.
type Buffer struct {
	GenerationID int64
	PartitionID  int32
	Signature    string
	Block        *stream.StreamBlock
	Sync         bool
	EndOfStream  bool
}

// Sink is a stream.TopEndSink that appends every pushed buffer to an
// in-memory slice, retaining insertion order. It never fails a push;
// callers that need to exercise sink-failure handling should wrap or
// replace it with a purpose-built test double.
type Sink struct {
	mu      sync.Mutex
	buffers []Buffer
}

// New returns an empty in-memory sink.
func New() *Sink {
	return &Sink{}
}

// PushExportBuffer implements stream.TopEndSink.
func (s *Sink) PushExportBuffer(generationID int64, partitionID int32, signature string, block *stream.StreamBlock, sync bool, endOfStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffers = append(s.buffers, Buffer{
		GenerationID: generationID,
		PartitionID:  partitionID,
		Signature:    signature,
		Block:        block,
		Sync:         sync,
		EndOfStream:  endOfStream,
	})
	return nil
}

// Buffers returns a snapshot of every buffer pushed so far, in order.
func (s *Sink) Buffers() []Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out = make([]Buffer, len(s.buffers))
	copy(out, s.buffers)
	return out
}

// Reset discards every captured buffer.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers = nil
}
