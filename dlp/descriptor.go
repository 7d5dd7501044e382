package dlp

import (
	"fmt"
	"time"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
)

// Unbounded is the time budget that lets a table search until its own walk
// limit is reached.
const Unbounded time.Duration = 0

// TableDescriptor identifies one precomputed table and carries its encoded
// payload. Descriptors are treated as immutable once handed to Initialize.
type TableDescriptor struct {
	Name string // optional label used in logs

	Bits uint8  // width of the search space covered by the table
	N    uint64 // distinguished points in the table
	W    uint64 // mean jump size, power of two
	R    uint64 // jump table rows, power of two
	I    uint64 // walk length multiplier, zero for the default

	// Payload is the table in JSON or binary encoding. Only the engine
	// interprets it.
	Payload []byte
}

// Params returns the kangaroo parameters the descriptor declares.
func (d *TableDescriptor) Params() kangaroo.Parameters {
	return kangaroo.Parameters{Bits: d.Bits, N: d.N, W: d.W, R: d.R, I: d.I}
}

// Validate checks the descriptor's shape without parsing the payload.
func (d *TableDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidTableDescriptor)
	}
	if err := d.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTableDescriptor, err)
	}
	if len(d.Payload) == 0 {
		return fmt.Errorf("%w: empty table payload", ErrInvalidTableDescriptor)
	}
	return nil
}

func (d *TableDescriptor) String() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("%d-bit", d.Bits)
}

// InstanceInfo describes one initialized table without exposing its engine.
type InstanceInfo struct {
	Name   string
	Bits   uint8
	N      uint64
	W      uint64
	R      uint64
	Budget time.Duration
}

// Solution is a recovered discrete logarithm. A zero Value is a valid result.
type Solution struct {
	Value   uint64
	Bits    uint8         // bit width of the table that found it
	Index   int           // position of that table in the escalation order
	Elapsed time.Duration // wall time across all tables tried
}
