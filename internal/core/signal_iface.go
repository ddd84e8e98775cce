package core

// Frame is one encoded signaling envelope.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must not block; a full buffer reports ErrBackpressure.
	TrySend(Frame) error
	Close()
}
