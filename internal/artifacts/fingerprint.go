package artifacts

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Input is anything an artifact can be computed from.
type Input interface {
	Fingerprint() uint64
}

// Key is an input that already is a fingerprint, for callers that only
// need to distinguish runs.
type Key uint64

// Fingerprint returns k.
func (k Key) Fingerprint() uint64 { return uint64(k) }

// StringKey fingerprints a string, such as a serialized option set.
func StringKey(s string) Key { return Key(xxhash.Sum64String(s)) }

// Fingerprint combines the fingerprints of inputs in order. Nil inputs
// contribute a fixed marker so their position still matters.
func Fingerprint(inputs ...Input) uint64 {
	d := xxhash.New()
	var buf [9]byte
	for _, in := range inputs {
		if in == nil {
			buf[0] = 0
			binary.LittleEndian.PutUint64(buf[1:], 0)
		} else {
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], in.Fingerprint())
		}
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
