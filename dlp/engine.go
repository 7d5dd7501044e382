package dlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
)

// Engine answers bounded discrete-log queries against one table. A returned
// false with a nil error means the target was not found within the budget.
type Engine interface {
	ValidateTarget(target []byte) error
	Solve(ctx context.Context, target []byte, budget time.Duration) (uint64, bool, error)
}

// EngineFactory builds the engine for one validated descriptor.
type EngineFactory func(ctx context.Context, desc *TableDescriptor) (Engine, error)

// NewKangarooEngine is the default EngineFactory. It parses the payload and
// checks it against the descriptor's metadata.
func NewKangarooEngine(ctx context.Context, desc *TableDescriptor) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := kangaroo.ParseTable(desc.Payload)
	if err != nil {
		return nil, mapEngineError(err)
	}
	k, err := kangaroo.New(desc.Params(), tbl)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return &kangarooEngine{k: k}, nil
}

type kangarooEngine struct {
	k *kangaroo.Kangaroo
}

func (e *kangarooEngine) ValidateTarget(target []byte) error {
	return mapEngineError(e.k.ValidateTarget(target))
}

func (e *kangarooEngine) Solve(ctx context.Context, target []byte, budget time.Duration) (uint64, bool, error) {
	v, ok, err := e.k.Solve(ctx, target, budget)
	return v, ok, mapEngineError(err)
}

// mapEngineError translates solver errors into dispatcher errors. Errors it
// does not know pass through unchanged.
func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kangaroo.ErrInvalidPoint):
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	case errors.Is(err, kangaroo.ErrInvalidParams),
		errors.Is(err, kangaroo.ErrInvalidTable),
		errors.Is(err, kangaroo.ErrCorruptTable):
		return fmt.Errorf("%w: %w", ErrInvalidTableDescriptor, err)
	default:
		return err
	}
}
