package participation

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

var unitDomain = []byte("aiaudit/participation/unit/v1")

// Unit maps an integer seed to a value in [0, 1).
//
// It is BLAKE2b-256 over a fixed domain tag and the big-endian seed; the top
// 53 bits of the digest become the mantissa. The result is identical across
// processes, platforms and runs.
func Unit(seed int64) float64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seed))

	h, _ := blake2b.New256(nil) // nil key never fails
	h.Write(unitDomain)
	h.Write(buf[:])
	sum := h.Sum(nil)

	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}
