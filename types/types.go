package types

import (
	"unsafe"

	"github.com/outofforest/photon"
)

const (
	// WordLength is the number of bytes taken by one word.
	WordLength = 8

	// CacheLineLength is the number of bytes in one cache line.
	CacheLineLength = 128

	// WordsPerLine is the number of words in one cache line.
	WordsPerLine = CacheLineLength / WordLength
)

type (
	// Word is the machine word messages are built from.
	Word uint64

	// MessageType identifies a message schema. It is opaque to the core;
	// two messages match only if their types are bit-equal.
	MessageType uint64

	// NodeID identifies a node attached to a core. IDs are monotone and
	// never reused within a core lifetime.
	NodeID uint64
)

// SubscriptionKey routes messages from publishers to subscribers.
// Topics are compared byte-exact, no wildcards.
type SubscriptionKey struct {
	Topic string
	Type  MessageType
}

// Segment is a cache-line-aligned run of words. It is exclusively owned by
// the message buffer which requested it.
type Segment struct {
	P   unsafe.Pointer
	Len uint64
}

// Words returns the word view of the segment.
func (s Segment) Words() []Word {
	return photon.SliceFromPointer[Word](s.P, int(s.Len))
}

// Bytes returns the byte view of the segment.
func (s Segment) Bytes() []byte {
	return photon.SliceFromPointer[byte](s.P, int(s.Len*WordLength))
}
