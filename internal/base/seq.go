package base

import "sync/atomic"

// SeqNum orders the records a table writer appends to its commit log. Every
// structural command is stamped with the next SeqNum before it is durably
// written, so replaying the log reconstructs the order
// commands were queued in, not just the order their side effects ran.
// Sequence numbers are stored within a Record's Trailer as a 7-byte
// (uint56) value; the maximum representable sequence number is 2^56-1.
type SeqNum uint64

const SeqNumMax = SeqNum(^uint64(0) >> 8)

type AtomicSeqNum struct {
	value atomic.Uint64
}

// Load atomically loads and returns the stored SeqNum.
func (asn *AtomicSeqNum) Load() SeqNum {
	return SeqNum(asn.value.Load())
}

// Store atomically stores s.
func (asn *AtomicSeqNum) Store(s SeqNum) {
	asn.value.Store(uint64(s))
}

// Add atomically adds delta to asn and returns the new value.
func (asn *AtomicSeqNum) Add(delta SeqNum) SeqNum {
	return SeqNum(asn.value.Add(uint64(delta)))
}

// CompareAndSwap executes the compare-and-swap operation.
func (asn *AtomicSeqNum) CompareAndSwap(old, new SeqNum) bool {
	return asn.value.CompareAndSwap(uint64(old), uint64(new))
}
