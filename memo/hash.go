package memo

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// HashFloats hashes the bit patterns of vs in order. Equal inputs always
// produce equal hashes; -0 and +0 hash differently.
func HashFloats(vs ...float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
