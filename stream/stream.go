package stream

import (
	"strconv"

	log "github.com/sirupsen/logrus"
)

// MaxBufferAgeMillis is the default maximum age, in milliseconds, a block
// may accumulate writes before PeriodicFlush forces it out regardless of
// size.
const MaxBufferAgeMillis = 4000

// DefaultBlockCapacity is the capacity newly allocated blocks receive
// absent an explicit SetDefaultCapacity call.
const DefaultBlockCapacity = 2 << 20 // 2MiB

// TupleStream is the buffer-chain manager for one partition's export
// stream: it owns an in-progress StreamBlock and a FIFO of blocks pending
// commit and handoff, and tracks the stream's USO, open/committed
// transaction boundaries, and schema generation. It has exactly one
// writer and performs no internal synchronization; the caller is
// responsible for serializing all calls.
type TupleStream struct {
	partitionID int32
	siteID      int64

	uso          int64
	currentBlock *StreamBlock
	pending      pendingQueue

	openTxnID      int64
	openTxnUSO     int64
	committedTxnID int64
	committedUSO   int64

	generation          int64
	prevBlockGeneration int64
	signature           string

	lastFlushMillis int64
	defaultCapacity int

	hasWritten   bool
	hasOpenedTxn bool

	sink TopEndSink
	log  *log.Entry
}

// NewTupleStream returns a new TupleStream for the given partition and
// site, initialized with a single empty block of DefaultBlockCapacity
// and an uninitialized schema generation.
func NewTupleStream(partitionID int32, siteID int64, sink TopEndSink) *TupleStream {
	invariant(sink != nil, "TopEndSink must not be nil")

	var s = &TupleStream{
		partitionID:         partitionID,
		siteID:              siteID,
		defaultCapacity:     DefaultBlockCapacity,
		generation:          sentinelGeneration,
		prevBlockGeneration: sentinelGeneration,
		sink:                sink,
	}
	s.currentBlock = newStreamBlock(s.defaultCapacity, 0, s.generation, s.signature)
	return s
}

// SetLogger attaches a structured logger used for debug-level tracing of
// stream operations. A nil logger (the default) disables logging entirely
// at zero per-call cost.
func (s *TupleStream) SetLogger(entry *log.Entry) { s.log = entry }

// PartitionID returns the stream's immutable partition identifier.
func (s *TupleStream) PartitionID() int32 { return s.partitionID }

// SiteID returns the stream's immutable site identifier.
func (s *TupleStream) SiteID() int64 { return s.siteID }

// USO returns the stream's current tail position.
func (s *TupleStream) USO() int64 { return s.uso }

// CommittedUSO returns the USO below which all bytes are durable-committable.
func (s *TupleStream) CommittedUSO() int64 { return s.committedUSO }

// Generation returns the stream's current schema epoch.
func (s *TupleStream) Generation() int64 { return s.generation }

// PendingBlocks returns the number of blocks currently queued for commit
// and handoff, for diagnostics and tests.
func (s *TupleStream) PendingBlocks() int { return s.pending.len() }

// SetDefaultCapacity sets the capacity newly allocated blocks will
// receive. It is only valid before any writes have occurred and before
// any transaction has opened; calling it afterward is a programmer error
// and panics.
func (s *TupleStream) SetDefaultCapacity(n int) {
	invariant(!s.hasWritten && !s.hasOpenedTxn,
		"SetDefaultCapacity called after writes or a transaction has opened")
	invariant(n > 0, "default capacity must be positive (have %d)", n)

	s.defaultCapacity = n
	s.currentBlock = newStreamBlock(n, s.uso, s.generation, s.signature)
}

// SetSignatureAndGeneration stamps the stream's signature and advances its
// schema generation. gen must be strictly greater than the current
// generation, and sig must equal the current signature or the current
// signature must still be empty (the very first call). On every call
// after the stream's generation has actually left its uninitialized
// sentinel, this forces a commit of the currently open transaction,
// force-extends the block chain, and drains pending blocks, guaranteeing
// the generation fence is observed by the sink before any row tagged
// with the new generation can reach it.
func (s *TupleStream) SetSignatureAndGeneration(sig string, gen int64) {
	invariant(gen > s.generation, "generation regression: %d <= current %d", gen, s.generation)
	invariant(s.signature == "" || sig == s.signature,
		"signature mismatch: stream is %q, got %q", s.signature, sig)

	var initial = s.generation == sentinelGeneration
	s.signature = sig
	s.generation = gen

	if s.log != nil {
		s.log.WithFields(log.Fields{"signature": sig, "generation": gen, "initial": initial}).
			Debug("SetSignatureAndGeneration")
	}

	if initial {
		// No rows have been fenced by a prior generation yet; simply
		// relabel the still-empty current block in place rather than
		// force-extending the chain over nothing.
		if s.currentBlock != nil && s.currentBlock.Offset() == 0 {
			s.currentBlock.generationID = gen
			s.currentBlock.signature = sig
		}
		return
	}

	generationChangesTotal.Inc()
	s.committedUSO = s.uso
	s.committedTxnID = s.openTxnID
	s.forceExtend()
	s.drainPendingBlocks()
}

// AppendTuple serializes one row into the stream and returns the USO the
// row was written at — the mark a caller passes to RollbackTo to undo
// exactly this append.
func (s *TupleStream) AppendTuple(
	lastCommittedTxnID, txnID, seqNo, timestamp, generationID int64,
	tuple Tuple, op OpType,
) int64 {
	invariant(txnID >= s.openTxnID, "txn_id regression: %d < open_txn_id %d", txnID, s.openTxnID)

	s.commit(lastCommittedTxnID, txnID, false)

	var maxLen = MaxRowLen(tuple)

	if generationID > s.generation {
		s.generation = generationID
		generationChangesTotal.Inc()
		s.forceExtend()
	}

	if s.currentBlock == nil || maxLen > s.currentBlock.Remaining() {
		invariant(maxLen <= int64(s.defaultCapacity),
			"row of %d bytes exceeds default capacity %d", maxLen, s.defaultCapacity)

		if s.currentBlock != nil {
			s.pending.pushBack(s.currentBlock)
		}
		s.currentBlock = newStreamBlock(s.defaultCapacity, s.uso, s.generation, s.signature)
	}

	s.drainPendingBlocks()

	var mark = s.uso
	var meta = RowMeta{
		TxnID:       txnID,
		Timestamp:   timestamp,
		SeqNo:       seqNo,
		PartitionID: int64(s.partitionID),
		SiteID:      s.siteID,
		OpType:      op,
	}
	var n = EncodeRow(s.currentBlock.MutableTail(), meta, tuple)
	s.currentBlock.Consumed(n)
	s.uso += n
	s.hasWritten = true

	appendedBytesTotal.Add(float64(n))
	if s.log != nil {
		s.log.WithFields(log.Fields{"txn_id": txnID, "mark": mark, "bytes": n}).Debug("AppendTuple")
	}

	return mark
}

// Commit advances the stream's commit state. sync is accepted but has no
// effect anywhere in this module; it is carried on the signature for
// parity with the sink's PushExportBuffer contract.
func (s *TupleStream) Commit(lastCommittedTxnID, currentTxnID int64, sync bool) {
	s.commit(lastCommittedTxnID, currentTxnID, sync)
}

func (s *TupleStream) commit(lastCommittedTxnID, currentTxnID int64, _ bool) {
	invariant(currentTxnID >= s.openTxnID, "txn_id regression in commit: %d < open_txn_id %d", currentTxnID, s.openTxnID)
	s.hasOpenedTxn = true

	if currentTxnID == s.openTxnID && lastCommittedTxnID == s.committedTxnID {
		return // no-op
	}
	if s.openTxnID < currentTxnID {
		s.committedUSO = s.uso
		s.committedTxnID = s.openTxnID
		s.openTxnID = currentTxnID
		s.openTxnUSO = s.uso
	}
	if s.openTxnID <= lastCommittedTxnID {
		s.committedUSO = s.uso
		s.committedTxnID = s.openTxnID
	}

	if s.log != nil {
		s.log.WithFields(log.Fields{
			"last_committed_txn_id": lastCommittedTxnID,
			"current_txn_id":        currentTxnID,
			"committed_uso":         s.committedUSO,
		}).Debug("commit")
	}
}

// RollbackTo discards all bytes with USO >= mark. mark must not exceed
// the stream's current USO. Rollback never crosses a committed USO
// boundary; the caller is responsible for only rolling back uncommitted
// bytes.
func (s *TupleStream) RollbackTo(mark int64) {
	invariant(mark <= s.uso, "rollback mark %d exceeds uso %d (truncating the future)", mark, s.uso)

	var discarded = s.uso - mark
	s.uso = mark

	if s.currentBlock != nil && s.currentBlock.BaseUSO() < mark {
		s.currentBlock.TruncateTo(mark)
		rolledBackBytesTotal.Add(float64(discarded))
		if s.log != nil {
			s.log.WithField("mark", mark).Debug("RollbackTo (current block truncated)")
		}
		return
	}

	s.currentBlock = nil
	for !s.pending.empty() {
		var b = s.pending.back()
		if b.BaseUSO() >= mark {
			s.pending.popBack()
			continue
		}
		s.pending.popBack()
		b.TruncateTo(mark)
		s.currentBlock = b
		break
	}

	rolledBackBytesTotal.Add(float64(discarded))
	if s.log != nil {
		s.log.WithField("mark", mark).Debug("RollbackTo (walked pending)")
	}
}

// PeriodicFlush forces a new block and drains whatever of the chain is
// now committed, if the flush interval has elapsed (or nowMs < 0 for a
// mandatory flush).
func (s *TupleStream) PeriodicFlush(nowMs, lastCommittedTxnID, currentTxnID int64) {
	if !(nowMs < 0 || nowMs-s.lastFlushMillis > MaxBufferAgeMillis) {
		return
	}
	if nowMs >= 0 {
		s.lastFlushMillis = nowMs
	}

	var effectiveTxn = currentTxnID
	if s.openTxnID > effectiveTxn {
		effectiveTxn = s.openTxnID
	}

	s.forceExtend()
	s.commit(lastCommittedTxnID, effectiveTxn, false)
	s.drainPendingBlocks()
}

// forceExtend pushes the current block (however full) to the pending
// queue and allocates a fresh one at the stream's current tail.
func (s *TupleStream) forceExtend() {
	if s.currentBlock != nil {
		s.pending.pushBack(s.currentBlock)
	}
	s.currentBlock = newStreamBlock(s.defaultCapacity, s.uso, s.generation, s.signature)
}

// drainPendingBlocks walks the pending queue from the front, handing off
// to the sink every block that has become fully committed, injecting an
// end-of-stream marker at each generation transition observed at the
// sink's input.
func (s *TupleStream) drainPendingBlocks() {
	for {
		var b = s.pending.front()
		if b == nil {
			return
		}

		if b.GenerationID() > s.prevBlockGeneration && s.prevBlockGeneration != sentinelGeneration {
			var eos = newEndOfStreamBlock(b.BaseUSO(), s.prevBlockGeneration, s.signature)
			s.pushToSink(eos, false)
		}
		s.prevBlockGeneration = b.GenerationID()

		if s.committedUSO >= b.BaseUSO()+b.Offset() {
			s.pending.popFront()
			s.pushToSink(b, false)
			continue
		}
		return
	}
}

// pushToSink hands b to the sink, honoring the contract that empty,
// non-EOS blocks are never pushed.
func (s *TupleStream) pushToSink(b *StreamBlock, sync bool) {
	if b.Offset() == 0 && !b.EndOfStream() {
		return
	}

	var payload *StreamBlock
	if !b.EndOfStream() {
		payload = b
	}

	if err := s.sink.PushExportBuffer(b.GenerationID(), s.partitionID, b.Signature(), payload, sync, b.EndOfStream()); err != nil {
		// Sink push errors are treated as fatal; the stream has no
		// recovery strategy.
		panic(err)
	}

	blocksPushedTotal.WithLabelValues(strconv.FormatBool(b.EndOfStream())).Inc()
	if s.log != nil {
		s.log.WithFields(log.Fields{
			"generation":    b.GenerationID(),
			"offset":        b.Offset(),
			"end_of_stream": b.EndOfStream(),
		}).Debug("pushed block to sink")
	}
}
