package kangaroo

import (
	"fmt"
	"math/bits"
	"path/filepath"
	"strings"

	"github.com/tos-network/kangaroo/params"
)

// Parameters describe the walk a table was generated for.
type Parameters struct {
	Bits uint8  `json:"bits"`        // width of the search space
	N    uint64 `json:"n"`           // distinguished points stored in the table
	W    uint64 `json:"w"`           // mean walk length between distinguished points, power of two
	R    uint64 `json:"r"`           // jump table rows, power of two
	I    uint64 `json:"i,omitempty"` // walk length multiplier, zero selects params.DefaultWalkFactor

	// MaxWalks bounds the number of wild walks of a search without a time
	// budget. Zero selects params.DefaultMaxWalks.
	MaxWalks uint64 `json:"-"`
}

// Validate checks the parameters for internal consistency.
func (p Parameters) Validate() error {
	switch {
	case p.Bits == 0 || p.Bits > params.MaxTableBits:
		return fmt.Errorf("%w: bit width %d out of range [1, %d]", ErrInvalidParams, p.Bits, params.MaxTableBits)
	case p.N == 0:
		return fmt.Errorf("%w: empty table", ErrInvalidParams)
	case p.W == 0 || bits.OnesCount64(p.W) != 1:
		return fmt.Errorf("%w: w=%d is not a power of two", ErrInvalidParams, p.W)
	case p.R == 0 || bits.OnesCount64(p.R) != 1:
		return fmt.Errorf("%w: r=%d is not a power of two", ErrInvalidParams, p.R)
	}
	return nil
}

func (p Parameters) walkFactor() uint64 {
	if p.I == 0 {
		return params.DefaultWalkFactor
	}
	return p.I
}

func (p Parameters) maxWalks() uint64 {
	if p.MaxWalks == 0 {
		return params.DefaultMaxWalks
	}
	return p.MaxWalks
}

// WalkLength is the number of steps after which a walk that has not hit a
// distinguished point is abandoned.
func (p Parameters) WalkLength() uint64 {
	return p.walkFactor() * p.W
}

// OffsetBound is the exclusive upper bound of the random offset a wild walk
// starts from. Tables must cover starts up to 2^Bits + OffsetBound.
func (p Parameters) OffsetBound() uint64 {
	if p.Bits <= params.WildOffsetShift+1 {
		return 2
	}
	return 1 << (p.Bits - params.WildOffsetShift)
}

func (p Parameters) String() string {
	return fmt.Sprintf("bits=%d n=%d w=%d r=%d", p.Bits, p.N, p.W, p.R)
}

// ParamsFromFileName recovers parameters from a reference table file name of
// the form output_<w>_<n>_<bits>_<r>.json.
func ParamsFromFileName(name string) (Parameters, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	var (
		p     Parameters
		width uint64
	)
	if _, err := fmt.Sscanf(strings.ReplaceAll(base, "_", " "), "output %d %d %d %d", &p.W, &p.N, &width, &p.R); err != nil {
		return Parameters{}, fmt.Errorf("%w: unrecognized table file name %q", ErrInvalidParams, name)
	}
	if width > params.MaxTableBits {
		return Parameters{}, fmt.Errorf("%w: bit width %d out of range", ErrInvalidParams, width)
	}
	p.Bits = uint8(width)
	return p, p.Validate()
}
