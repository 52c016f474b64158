package relay

import (
	"sync"

	"github.com/cespare/xxhash"

	"github.com/outofforest/photon"
	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/types"
)

const numOfBuckets = 256

// subscriberEntry is one registered callback. The arg is stored verbatim and
// passed back on every invocation.
type subscriberEntry struct {
	id   uint64
	node types.NodeID
	fn   abi.Callback
	arg  any
}

// subscriptionTable maps subscription keys to callback lists. Buckets are
// selected by key hash; writers contend only within one bucket and readers
// never block each other.
type subscriptionTable struct {
	buckets [numOfBuckets]tableBucket
}

type tableBucket struct {
	mu      sync.RWMutex
	entries map[types.SubscriptionKey][]subscriberEntry
}

func (t *subscriptionTable) bucket(key types.SubscriptionKey) *tableBucket {
	b := make([]byte, types.WordLength+len(key.Topic))
	msgType := key.Type
	copy(b, photon.NewFromValue(&msgType).B)
	copy(b[types.WordLength:], key.Topic)
	return &t.buckets[xxhash.Sum64(b)%numOfBuckets]
}

func (t *subscriptionTable) insert(key types.SubscriptionKey, e subscriberEntry) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries == nil {
		b.entries = map[types.SubscriptionKey][]subscriberEntry{}
	}
	// Append never touches the prefix visible to concurrent lookup
	// snapshots; removals build a fresh list instead of mutating this one.
	b.entries[key] = append(b.entries[key], e)
}

// lookup returns the callback list registered for the key at the moment of
// the call. The returned slice is stable for the whole dispatch: removals
// replace the list, they never modify it.
func (t *subscriptionTable) lookup(key types.SubscriptionKey) []subscriberEntry {
	b := t.bucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.entries[key]
}

func (t *subscriptionTable) remove(key types.SubscriptionKey, id uint64) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.entries[key]
	entries := make([]subscriberEntry, 0, len(old))
	for _, e := range old {
		if e.id != id {
			entries = append(entries, e)
		}
	}
	b.entries[key] = entries
}

// removeOwned removes every entry registered by the node.
func (t *subscriptionTable) removeOwned(node types.NodeID) {
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		for key, old := range b.entries {
			entries := make([]subscriberEntry, 0, len(old))
			for _, e := range old {
				if e.node != node {
					entries = append(entries, e)
				}
			}
			b.entries[key] = entries
		}
		b.mu.Unlock()
	}
}

// drop empties the table.
func (t *subscriptionTable) drop() {
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		b.entries = nil
		b.mu.Unlock()
	}
}
