package storage

import (
	"encoding/binary"
	"hash/maphash"
	"math/rand/v2"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to a 64-bit hash under the given seed.
// Implementations must be pure functions of (seed, key) and safe for
// concurrent use; the store derives shard indexes from the result.
type Hasher[K comparable] func(seed uint64, key K) uint64

// identitySeed feeds maphash for keys without a direct byte form. It is fixed
// per process, so routing stays a function of (seed, key) while the process
// runs.
var identitySeed = maphash.MakeSeed()

// DefaultHasher hashes keys with seeded xxhash. Strings and integer kinds are
// hashed from their bytes directly. Any other comparable key is first reduced
// with maphash.Comparable, which agrees with ==: pointers hash by address
// and 0.0 and -0.0 collide.
func DefaultHasher[K comparable](seed uint64, key K) uint64 {
	d := xxhash.NewWithSeed(seed)
	switch k := any(key).(type) {
	case string:
		_, _ = d.WriteString(k)
	case int:
		_, _ = d.Write(strconv.AppendInt(nil, int64(k), 10))
	case int64:
		_, _ = d.Write(strconv.AppendInt(nil, k, 10))
	case uint64:
		_, _ = d.Write(strconv.AppendUint(nil, k, 10))
	default:
		_, _ = d.Write(binary.LittleEndian.AppendUint64(nil, maphash.Comparable(identitySeed, key)))
	}
	return d.Sum64()
}

// newSeed returns a fresh random routing seed.
func newSeed() uint64 {
	return rand.Uint64()
}

// indexFor reduces a hash to a shard index in [0, numShards).
func indexFor(hash uint64, numShards int) int {
	return int(hash % uint64(numShards))
}
