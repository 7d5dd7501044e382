package params

import (
	"fmt"
	"time"
)

const (
	// MaxTableBits is the widest search space a table may cover; results are
	// carried as uint64.
	MaxTableBits = 64

	// DefaultWalkFactor multiplies W to bound a single wild walk before it is
	// abandoned and restarted from a fresh offset.
	DefaultWalkFactor = 8

	// DefaultMaxWalks caps the number of wild walks an unbounded search makes
	// before reporting "not found".
	DefaultMaxWalks = 4096

	// WildOffsetShift is subtracted from the table bit width to size the random
	// offset each wild walk starts from.
	WildOffsetShift = 8

	// PointSize is the length of a canonical Ristretto255 encoding.
	PointSize = 32
)

// TablePreset describes one of the published precomputed tables.
type TablePreset struct {
	Bits uint8
	N    uint64
	W    uint64
	R    uint64

	// Budget is the default time budget applied when the table is tried
	// during escalation. Zero means unbounded.
	Budget time.Duration
}

// FileName returns the name the reference table generator gives the table.
func (p TablePreset) FileName() string {
	return fmt.Sprintf("output_%d_%d_%d_%d.json", p.W, p.N, p.Bits, p.R)
}

// Stock tables, ordered cheapest first. This order is also the default
// escalation order.
var (
	Table16 = TablePreset{Bits: 16, N: 8000, W: 8, R: 64, Budget: 50 * time.Millisecond}
	Table32 = TablePreset{Bits: 32, N: 4000, W: 2048, R: 128, Budget: 1500 * time.Millisecond}
	Table48 = TablePreset{Bits: 48, N: 40000, W: 65536, R: 128}

	DefaultTablePresets = []TablePreset{Table16, Table32, Table48}
)

// PresetForBits returns the stock preset covering the given bit width.
func PresetForBits(bits uint8) (TablePreset, bool) {
	for _, p := range DefaultTablePresets {
		if p.Bits == bits {
			return p, true
		}
	}
	return TablePreset{}, false
}
