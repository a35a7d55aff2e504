/*package compress archives exported grids as zstd-compressed files.

A grid file x.raw is stored as x.raw.zst. Before compression the four bytes
of every float32 are split into four planes, most significant byte last, so
that the slowly varying exponent bytes of neighbouring cells end up next to
one another. Unpacking restores the original file byte for byte.
*/
package compress

import (
	"fmt"

	"github.com/DataDog/zstd"
)

// DefaultLevel is the zstd compression level used by gridpipe.
const DefaultLevel = 3

// Shuffle splits the little-endian float32 values in b into byte planes and
// writes them to out, which must be the same length as b.
func Shuffle(b, out []byte) {
	n := len(b) / 4
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			out[j*n+i] = b[4*i+j]
		}
	}
}

// Unshuffle undoes Shuffle.
func Unshuffle(b, out []byte) {
	n := len(b) / 4
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			out[4*i+j] = b[j*n+i]
		}
	}
}

// Compress shuffles and compresses a raw grid. buf is used as an internal
// buffer and may be nil.
func Compress(raw, buf []byte, level int) ([]byte, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf(
			"Grid has %d bytes, which is not a whole number of float32s.",
			len(raw),
		)
	}
	buf = resizeBytes(buf, len(raw))
	Shuffle(raw, buf)
	return zstd.CompressLevel(nil, buf, level)
}

// Decompress undoes Compress.
func Decompress(packed []byte) ([]byte, error) {
	buf, err := zstd.Decompress(nil, packed)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf(
			"Decompressed grid has %d bytes, which is not a whole number "+
				"of float32s.", len(buf),
		)
	}
	raw := make([]byte, len(buf))
	Unshuffle(buf, raw)
	return raw, nil
}

func resizeBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}
