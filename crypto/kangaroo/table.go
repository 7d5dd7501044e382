package kangaroo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/sha3"

	"github.com/tos-network/kangaroo/params"
)

// Point is a canonical Ristretto255 encoding.
type Point [params.PointSize]byte

// Table is the precomputed data a kangaroo walk consults: the jump points
// s[i] = slog[i]*G and the map from distinguished points to their logarithms.
type Table struct {
	FileName string
	Jumps    []Point
	JumpLogs []uint64
	Points   map[Point]uint64

	// Header is set when the encoding carried its own parameters.
	Header *Parameters
}

// Params returns the parameters implied by the table itself, either from an
// encoded header or from a reference file name.
func (t *Table) Params() (Parameters, bool) {
	if t.Header != nil {
		return *t.Header, true
	}
	if t.FileName != "" {
		if p, err := ParamsFromFileName(t.FileName); err == nil {
			return p, true
		}
	}
	return Parameters{}, false
}

// CheckShape verifies that the table has the size p implies.
func (t *Table) CheckShape(p Parameters) error {
	if uint64(len(t.Jumps)) != p.R || uint64(len(t.JumpLogs)) != p.R {
		return fmt.Errorf("%w: %d jumps and %d jump logs, want r=%d", ErrInvalidTable, len(t.Jumps), len(t.JumpLogs), p.R)
	}
	if uint64(len(t.Points)) != p.N {
		return fmt.Errorf("%w: %d distinguished points, want n=%d", ErrInvalidTable, len(t.Points), p.N)
	}
	if own, ok := t.Params(); ok {
		if own.Bits != p.Bits || own.N != p.N || own.W != p.W || own.R != p.R {
			return fmt.Errorf("%w: table is %v, descriptor says %v", ErrInvalidTable, own, p)
		}
	}
	return nil
}

// decodeJumps decodes the jump points and checks each against its logarithm.
func (t *Table) decodeJumps() ([]*ristretto255.Element, error) {
	out := make([]*ristretto255.Element, len(t.Jumps))
	for i := range t.Jumps {
		e, err := ristretto255.NewIdentityElement().SetCanonicalBytes(t.Jumps[i][:])
		if err != nil {
			return nil, fmt.Errorf("%w: jump %d: %v", ErrCorruptTable, i, err)
		}
		want := ristretto255.NewIdentityElement().ScalarBaseMult(scalarFromUint64(t.JumpLogs[i]))
		if e.Equal(want) != 1 {
			return nil, fmt.Errorf("%w: jump %d does not match its logarithm", ErrCorruptTable, i)
		}
		out[i] = e
	}
	return out, nil
}

// sortedPoints returns the distinguished points in byte order.
func (t *Table) sortedPoints() []Point {
	keys := make([]Point, 0, len(t.Points))
	for p := range t.Points {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}

// Hash returns a fingerprint of the table contents. Two tables with the same
// jumps and points hash equally regardless of the encoding they were read from.
func (t *Table) Hash() [32]byte {
	h := sha3.New256()
	var word [8]byte
	for i := range t.Jumps {
		h.Write(t.Jumps[i][:])
		binary.BigEndian.PutUint64(word[:], t.JumpLogs[i])
		h.Write(word[:])
	}
	for _, p := range t.sortedPoints() {
		h.Write(p[:])
		binary.BigEndian.PutUint64(word[:], t.Points[p])
		h.Write(word[:])
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// scalarFromUint64 returns v as a Ristretto255 scalar.
func scalarFromUint64(v uint64) *ristretto255.Scalar {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	s, err := ristretto255.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		// Values below 2^64 are always canonical.
		panic(err)
	}
	return s
}

// scalarToUint64 converts a 32-byte little-endian scalar that must fit in 64 bits.
func scalarToUint64(b []byte) (uint64, error) {
	if len(b) != 32 {
		return 0, fmt.Errorf("scalar is %d bytes", len(b))
	}
	for _, c := range b[8:] {
		if c != 0 {
			return 0, fmt.Errorf("scalar exceeds 64 bits")
		}
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}
