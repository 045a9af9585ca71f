package timeline

import (
	"crypto/rand"
	"hash/fnv"
	"math"
	mrand "math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh keyframe ID.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

// GeneratedID returns a reproducible ID for the index-th generated keyframe
// of a kind at time t. Identical inputs always yield the identical ID.
func GeneratedID(kind Kind, index int, t float64) string {
	h := fnv.New64a()
	h.Write([]byte(kind))
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(uint64(index) >> (8 * i))
	}
	h.Write(buf[:])

	ms := uint64(0)
	if isFinite(t) && t > 0 {
		ms = uint64(math.Round(t * 1000))
	}
	entropy := mrand.New(mrand.NewSource(int64(h.Sum64())))
	return ulid.MustNew(ms, entropy).String()
}
