// Package kangarootest builds tiny kangaroo tables for tests.
package kangarootest

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/gtank/ristretto255"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
)

// NewTable builds a table covering every start in [0, 2^bits + OffsetBound)
// so that each wild walk inside the range merges into a stored trail. Only
// practical for tiny bit widths. The result is deterministic.
func NewTable(tb testing.TB, bits uint8, w, r uint64) (kangaroo.Parameters, *kangaroo.Table) {
	tb.Helper()
	p := kangaroo.Parameters{Bits: bits, N: 1, W: w, R: r}
	if err := p.Validate(); err != nil {
		tb.Fatalf("NewTable: %v", err)
	}
	rng := rand.New(rand.NewPCG(uint64(bits), w*r))

	tbl := &kangaroo.Table{
		Jumps:    make([]kangaroo.Point, r),
		JumpLogs: make([]uint64, r),
		Points:   make(map[kangaroo.Point]uint64),
	}
	jumps := make([]*ristretto255.Element, r)
	for i := range jumps {
		tbl.JumpLogs[i] = 1 + rng.Uint64N(2*w)
		jumps[i] = element(tbl.JumpLogs[i])
		copy(tbl.Jumps[i][:], jumps[i].Bytes())
	}
	var (
		walkLen = p.WalkLength()
		limit   = uint64(1)<<bits + p.OffsetBound()
		start   = ristretto255.NewIdentityElement()
		g       = ristretto255.NewGeneratorElement()
	)
	for s := uint64(0); s < limit; s++ {
		cur := ristretto255.NewIdentityElement().Add(start, ristretto255.NewIdentityElement())
		dist := s
		for step := uint64(0); step < walkLen; step++ {
			var enc kangaroo.Point
			copy(enc[:], cur.Bytes())
			u := binary.BigEndian.Uint64(enc[len(enc)-8:])
			if u&(w-1) == 0 {
				tbl.Points[enc] = dist
				break
			}
			row := u & (r - 1)
			dist += tbl.JumpLogs[row]
			cur.Add(cur, jumps[row])
		}
		start.Add(start, g)
	}
	p.N = uint64(len(tbl.Points))
	return p, tbl
}

// Point returns the encoding of x·G.
func Point(x uint64) []byte {
	return element(x).Bytes()
}

func element(x uint64) *ristretto255.Element {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], x)
	s, err := ristretto255.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		panic(err)
	}
	return ristretto255.NewIdentityElement().ScalarBaseMult(s)
}
