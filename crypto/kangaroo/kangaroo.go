// Package kangaroo implements Pollard's kangaroo method with precomputed
// distinguished points (Bernstein-Lange) over Ristretto255. A Kangaroo binds
// one table to its parameters and answers bounded discrete-log queries.
package kangaroo

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gtank/ristretto255"
)

// deadlineCheckInterval is the number of walk steps between two checks of the
// time budget and the context.
const deadlineCheckInterval = 256

// Kangaroo answers discrete-log queries against one precomputed table. It is
// immutable after construction and safe for concurrent use.
type Kangaroo struct {
	params   Parameters
	jumps    []*ristretto255.Element
	jumpLogs []uint64
	points   map[Point]uint64
}

// New validates the table against p and prepares it for searching.
func New(p Parameters, t *Table) (*Kangaroo, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: no table", ErrInvalidTable)
	}
	if err := t.CheckShape(p); err != nil {
		return nil, err
	}
	jumps, err := t.decodeJumps()
	if err != nil {
		return nil, err
	}
	return &Kangaroo{
		params:   p,
		jumps:    jumps,
		jumpLogs: t.JumpLogs,
		points:   t.Points,
	}, nil
}

// Params returns the parameters the solver was built with.
func (k *Kangaroo) Params() Parameters {
	return k.params
}

// DecodePoint parses a target encoding.
func DecodePoint(pk []byte) (*ristretto255.Element, error) {
	if len(pk) != len(Point{}) {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPoint, len(pk), len(Point{}))
	}
	e, err := ristretto255.NewIdentityElement().SetCanonicalBytes(pk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return e, nil
}

// ValidateTarget reports whether pk is a target this solver accepts.
func (k *Kangaroo) ValidateTarget(pk []byte) error {
	_, err := DecodePoint(pk)
	return err
}

// Solve searches for x with x*G = pk. It returns (x, true, nil) on success,
// (0, false, nil) when maxTime elapsed or the walk budget ran out, and an error
// for a malformed target or a cancelled context. A zero maxTime leaves the
// search bounded only by the walk budget.
func (k *Kangaroo) Solve(ctx context.Context, pk []byte, maxTime time.Duration) (uint64, bool, error) {
	target, err := DecodePoint(pk)
	if err != nil {
		return 0, false, err
	}
	var deadline time.Time
	if maxTime > 0 {
		deadline = time.Now().Add(maxTime)
	}
	var (
		walkLen  = k.params.WalkLength()
		maxWalks = k.params.maxWalks()
		bound    = k.params.OffsetBound()
		steps    uint64
	)
	for walk := uint64(0); !deadline.IsZero() || walk < maxWalks; walk++ {
		wdist := rand.Uint64N(bound)
		w := ristretto255.NewIdentityElement().ScalarBaseMult(scalarFromUint64(wdist))
		w.Add(w, target)

		for step := uint64(0); step < walkLen; step++ {
			if steps++; steps%deadlineCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return 0, false, err
				}
				if !deadline.IsZero() && time.Now().After(deadline) {
					return 0, false, nil
				}
			}
			var enc Point
			copy(enc[:], w.Bytes())
			u := binary.BigEndian.Uint64(enc[len(enc)-8:])
			if u&(k.params.W-1) == 0 {
				if v, ok := k.points[enc]; ok && v >= wdist {
					return v - wdist, true, nil
				}
				break
			}
			row := u & (k.params.R - 1)
			wdist += k.jumpLogs[row]
			w.Add(w, k.jumps[row])
		}
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, false, nil
		}
	}
	return 0, false, nil
}
