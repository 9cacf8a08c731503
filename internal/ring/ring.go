// Package ring implements the consistent-hashing routing table described in
// spec.md §4.1: one point per storage node on a sorted 128-bit MD5 ring,
// dates routed by hashing the date key and walking clockwise to the first
// storage point at or past it, wrapping to the start of the ring when the
// hash falls past the last point. Ported from original_source/hashing.py's
// ConsistentHashing, restructured as a mutex-guarded registry in the shape
// of the teacher's ShardRegistry (internal/coordinator/shard_registry.go).
package ring

import (
	"crypto/md5"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
)

// ErrNoLiveStorage is returned when the ring has no points to route to.
var ErrNoLiveStorage = errors.New("ring: no live storage nodes")

// Ring is a mutex-guarded consistent-hashing table keyed by storage id.
// Each storage occupies exactly one ring point, matching spec.md §4.1's
// "single point per storage node" (no virtual nodes).
type Ring struct {
	mu sync.RWMutex

	prefix string // hash_prefix, prepended to a storage id before hashing

	points     map[string]*big.Int // storageID -> its ring point
	sortedKeys []*big.Int          // points, sorted ascending
	owners     map[string]string   // point.String() -> storageID
}

// New returns an empty ring that will hash storage keys as
// fmt.Sprintf("%s%s", prefix, storageID).
func New(prefix string) *Ring {
	return &Ring{
		prefix: prefix,
		points: make(map[string]*big.Int),
		owners: make(map[string]string),
	}
}

func hashKey(key string) *big.Int {
	sum := md5.Sum([]byte(key))
	return new(big.Int).SetBytes(sum[:])
}

// Add places storageID on the ring. Re-adding an id already present is a
// no-op beyond recomputing its point, which is idempotent.
func (r *Ring) Add(storageID string) {
	point := hashKey(r.prefix + storageID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.points[storageID]; ok {
		r.removeLocked(storageID, old)
	}
	r.points[storageID] = point
	r.owners[point.String()] = storageID
	r.insertSortedLocked(point)
}

// Remove takes storageID off the ring.
func (r *Ring) Remove(storageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	point, ok := r.points[storageID]
	if !ok {
		return
	}
	r.removeLocked(storageID, point)
}

func (r *Ring) removeLocked(storageID string, point *big.Int) {
	delete(r.points, storageID)
	delete(r.owners, point.String())

	idx := sort.Search(len(r.sortedKeys), func(i int) bool {
		return r.sortedKeys[i].Cmp(point) >= 0
	})
	if idx < len(r.sortedKeys) && r.sortedKeys[idx].Cmp(point) == 0 {
		r.sortedKeys = append(r.sortedKeys[:idx], r.sortedKeys[idx+1:]...)
	}
}

func (r *Ring) insertSortedLocked(point *big.Int) {
	idx := sort.Search(len(r.sortedKeys), func(i int) bool {
		return r.sortedKeys[i].Cmp(point) >= 0
	})
	r.sortedKeys = append(r.sortedKeys, nil)
	copy(r.sortedKeys[idx+1:], r.sortedKeys[idx:])
	r.sortedKeys[idx] = point
}

// Route returns the storage id owning key, walking clockwise from key's
// hash to the first ring point at or past it and wrapping around to index 0
// past the end.
func (r *Ring) Route(key string) (string, error) {
	hashed := hashKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sortedKeys) == 0 {
		return "", ErrNoLiveStorage
	}

	idx := sort.Search(len(r.sortedKeys), func(i int) bool {
		return r.sortedKeys[i].Cmp(hashed) >= 0
	})
	if idx == len(r.sortedKeys) {
		idx = 0
	}
	owner, ok := r.owners[r.sortedKeys[idx].String()]
	if !ok {
		return "", fmt.Errorf("ring: inconsistent state for point %s", r.sortedKeys[idx])
	}
	return owner, nil
}

// Contains reports whether storageID currently has a point on the ring.
func (r *Ring) Contains(storageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.points[storageID]
	return ok
}

// Members returns every storage id currently on the ring, in no particular
// order.
func (r *Ring) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.points))
	for id := range r.points {
		out = append(out, id)
	}
	return out
}
