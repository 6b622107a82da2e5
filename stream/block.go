package stream

import "fmt"

// StreamBlock owns one contiguous, fixed-capacity byte buffer into which
// row records are serialized. It tracks how many bytes have been written,
// the USO of its first byte, the schema generation its bytes belong to,
// and the stream signature it was stamped with. A StreamBlock never mixes
// bytes from two generations: the owning TupleStream forces a fresh block
// whenever the generation advances.
//
// StreamBlock performs no locking of its own; the owning TupleStream is
// the sole mutator.
type StreamBlock struct {
	buffer []byte

	baseUSO      int64
	offset       int64
	generationID int64
	signature    string
	endOfStream  bool
}

// newStreamBlock allocates an empty StreamBlock of the given capacity,
// beginning at baseUSO and stamped with the generation and signature
// that will own every row ever written into it.
//
// The stream stamps a block's generation at creation time rather than
// lazily on its first row: whenever the stream's generation is about to
// advance, the stream force-extends the chain before a block can be
// created to hold the new generation's rows, so a block's generation is
// already decided the instant it is allocated. The one exception is the
// first SetSignatureAndGeneration call, which relabels a still-empty
// current block in place instead of extending the chain. Stamping eagerly also
// gives blocks that are force-extended out while still empty a
// meaningful generation, which drainPendingBlocks relies on to track
// generation transitions correctly across runs of empty blocks.
func newStreamBlock(capacity int, baseUSO int64, generationID int64, signature string) *StreamBlock {
	invariant(capacity > 0, "block capacity must be positive (have %d)", capacity)
	return &StreamBlock{
		buffer:       make([]byte, capacity),
		baseUSO:      baseUSO,
		generationID: generationID,
		signature:    signature,
	}
}

// newEndOfStreamBlock synthesizes a zero-byte marker block signaling that
// no further bytes will ever be written under generationID on this
// stream. It carries no buffer of its own.
func newEndOfStreamBlock(baseUSO int64, generationID int64, signature string) *StreamBlock {
	return &StreamBlock{
		baseUSO:      baseUSO,
		generationID: generationID,
		signature:    signature,
		endOfStream:  true,
	}
}

// Capacity returns the total byte capacity of the block's buffer.
func (b *StreamBlock) Capacity() int64 { return int64(len(b.buffer)) }

// BaseUSO returns the USO of the block's first byte.
func (b *StreamBlock) BaseUSO() int64 { return b.baseUSO }

// Offset returns the number of bytes written to the block so far.
func (b *StreamBlock) Offset() int64 { return b.offset }

// EndUSO returns the USO immediately following the block's last written byte.
func (b *StreamBlock) EndUSO() int64 { return b.baseUSO + b.offset }

// GenerationID returns the schema epoch this block's bytes were written under.
func (b *StreamBlock) GenerationID() int64 { return b.generationID }

// Signature returns the stream signature stamped on this block.
func (b *StreamBlock) Signature() string { return b.signature }

// EndOfStream returns true iff this block is a synthesized epoch terminator.
func (b *StreamBlock) EndOfStream() bool { return b.endOfStream }

// Remaining returns the number of unwritten bytes left in the block.
func (b *StreamBlock) Remaining() int64 {
	return b.Capacity() - b.offset
}

// MutableTail returns a slice of the block's buffer beginning at the
// current write offset, into which a caller may serialize up to
// Remaining() bytes before calling Consumed.
func (b *StreamBlock) MutableTail() []byte {
	return b.buffer[b.offset:]
}

// Consumed advances the block's write offset by n bytes, which must
// already have been written into the slice returned by MutableTail.
func (b *StreamBlock) Consumed(n int64) {
	invariant(n >= 0 && n <= b.Remaining(), "Consumed(%d) exceeds remaining capacity %d", n, b.Remaining())
	b.offset += n
}

// TruncateTo discards all bytes with USO >= mark. mark must fall within
// [baseUSO, baseUSO+offset].
func (b *StreamBlock) TruncateTo(mark int64) {
	invariant(mark >= b.baseUSO && mark <= b.baseUSO+b.offset,
		"TruncateTo(%d) out of range [%d, %d]", mark, b.baseUSO, b.baseUSO+b.offset)
	b.offset = mark - b.baseUSO
}

// Bytes returns the committed, written portion of the block's buffer.
// The returned slice aliases the block's own storage and must not be
// retained past a handoff to the sink without copying.
func (b *StreamBlock) Bytes() []byte {
	if b.buffer == nil {
		return nil
	}
	return b.buffer[:b.offset]
}

func (b *StreamBlock) String() string {
	return fmt.Sprintf("StreamBlock<base=%d, offset=%d, capacity=%d, generation=%d, signature=%q, eos=%t>",
		b.baseUSO, b.offset, b.Capacity(), b.generationID, b.signature, b.endOfStream)
}

// sentinelGeneration represents an uninitialized schema generation: a
// stream that has never had its generation set by a write or by
// SetSignatureAndGeneration reports this value.
const sentinelGeneration = int64(-1 << 63)
