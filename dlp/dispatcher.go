// Package dlp recovers small discrete logarithms by escalating through an
// ordered set of precomputed kangaroo tables, smallest first.
package dlp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/kangaroo/log"
)

// State is the lifecycle state of a Dispatcher.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Instance binds one engine to the descriptor it was built from, together with
// the default budget for that table. Instances are never mutated.
type Instance struct {
	Info   InstanceInfo
	engine Engine
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEngineFactory replaces the kangaroo engine, mostly for tests.
func WithEngineFactory(f EngineFactory) Option {
	return func(d *Dispatcher) { d.newEngine = f }
}

// WithLogger sets the logger used for lifecycle and escalation events.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher owns the ordered table instances. It is initialized at most once
// and then serves concurrent Solve calls without locking beyond a state read.
type Dispatcher struct {
	mu        sync.Mutex
	state     State
	instances []Instance // published once, in escalation order
	initErr   error      // reason of the last failed Initialize

	newEngine EngineFactory
	log       log.Logger
}

// New returns an uninitialized Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		newEngine: NewKangarooEngine,
		log:       log.New("module", "dlp"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize builds one instance per descriptor, in the given order. Budgets,
// when supplied, must match the descriptors one to one; when omitted every
// table is searched without a time limit.
//
// Engines are built outside the lock. A failed Initialize leaves the
// dispatcher in StateFailed, from which Initialize may be retried.
func (d *Dispatcher) Initialize(ctx context.Context, descs []*TableDescriptor, budgets ...time.Duration) error {
	d.mu.Lock()
	switch d.state {
	case StateReady:
		d.mu.Unlock()
		return ErrAlreadyInitialized
	case StateInitializing:
		d.mu.Unlock()
		return ErrInitializationInProgress
	}
	d.state = StateInitializing
	d.mu.Unlock()

	start := time.Now()
	instances, err := d.build(ctx, descs, budgets)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state, d.initErr = StateFailed, err
		d.log.Warn("Kangaroo initialization failed", "tables", len(descs), "err", err)
		return err
	}
	d.state, d.instances, d.initErr = StateReady, instances, nil
	d.log.Info("Kangaroo tables initialized", "tables", len(instances), "elapsed", time.Since(start))
	return nil
}

func (d *Dispatcher) build(ctx context.Context, descs []*TableDescriptor, budgets []time.Duration) ([]Instance, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no tables", ErrInvalidTableDescriptor)
	}
	if len(budgets) == 0 {
		budgets = make([]time.Duration, len(descs))
	}
	if err := checkBudgets(budgets, len(descs)); err != nil {
		return nil, err
	}
	for i, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
	}
	var (
		engines = make([]Engine, len(descs))
		errs    = make([]error, len(descs))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range descs {
		g.Go(func() error {
			e, err := d.newEngine(gctx, desc)
			if err != nil {
				errs[i] = fmt.Errorf("table %d: %w", i, err)
				return err
			}
			engines[i] = e
			return nil
		})
	}
	if werr := g.Wait(); werr != nil {
		return nil, firstFailure(ctx, errs, werr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	instances := make([]Instance, len(descs))
	for i, desc := range descs {
		instances[i] = Instance{
			Info: InstanceInfo{
				Name:   desc.String(),
				Bits:   desc.Bits,
				N:      desc.N,
				W:      desc.W,
				R:      desc.R,
				Budget: budgets[i],
			},
			engine: engines[i],
		}
	}
	return instances, nil
}

// firstFailure picks the lowest indexed build error. A failure cancels the
// group context, so cancellations are passed over in favour of a real failure
// unless the caller cancelled too.
func firstFailure(ctx context.Context, errs []error, werr error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if ctx.Err() != nil || !errors.Is(err, context.Canceled) {
			return err
		}
	}
	if first != nil {
		return first
	}
	return werr
}

func checkBudgets(budgets []time.Duration, n int) error {
	if len(budgets) != n {
		return fmt.Errorf("%w: have %d, want %d", ErrBudgetMismatch, len(budgets), n)
	}
	for i, b := range budgets {
		if b < 0 {
			return fmt.Errorf("%w: budget %d is %v", ErrInvalidBudget, i, b)
		}
	}
	return nil
}

// requireReady returns the published instances.
func (d *Dispatcher) requireReady() ([]Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateReady:
		return d.instances, nil
	case StateInitializing:
		return nil, ErrInitializationInProgress
	case StateFailed:
		return nil, fmt.Errorf("%w: last attempt failed: %v", ErrNotInitialized, d.initErr)
	}
	return nil, ErrNotInitialized
}

// Solve recovers x with target = x·G by trying each table in order. The first
// table that finds x ends the search. Explicit budgets replace the defaults
// from Initialize for this call only.
func (d *Dispatcher) Solve(ctx context.Context, target []byte, budgets ...time.Duration) (Solution, error) {
	instances, err := d.requireReady()
	if err != nil {
		return Solution{}, err
	}
	if len(budgets) == 0 {
		budgets = make([]time.Duration, len(instances))
		for i := range instances {
			budgets[i] = instances[i].Info.Budget
		}
	} else if err := checkBudgets(budgets, len(instances)); err != nil {
		return Solution{}, err
	}
	for _, inst := range instances {
		if err := inst.engine.ValidateTarget(target); err != nil {
			if !errors.Is(err, ErrInvalidTarget) {
				err = fmt.Errorf("%w: %w", ErrInvalidTarget, err)
			}
			return Solution{}, err
		}
	}
	var (
		logger = d.log.New("solve", uuid.New().String())
		start  = time.Now()
	)
	for i, inst := range instances {
		v, found, err := solveOne(ctx, inst, target, budgets[i])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return Solution{}, ctxErr
			}
			if errors.Is(err, ErrInvalidTarget) {
				return Solution{}, err
			}
			logger.Error("Kangaroo engine failed", "table", inst.Info.Name, "err", err)
			return Solution{}, &EngineError{Index: i, Bits: inst.Info.Bits, Err: err}
		}
		if found {
			sol := Solution{Value: v, Bits: inst.Info.Bits, Index: i, Elapsed: time.Since(start)}
			logger.Debug("Discrete log recovered", "table", inst.Info.Name, "elapsed", sol.Elapsed)
			return sol, nil
		}
		logger.Trace("Table missed, escalating", "table", inst.Info.Name, "budget", budgets[i])
	}
	logger.Debug("No table covered the target", "tables", len(instances), "elapsed", time.Since(start))
	return Solution{}, ErrNoSolutionFound
}

// solveOne runs a single engine, turning a panic into an error.
func solveOne(ctx context.Context, inst Instance, target []byte, budget time.Duration) (v uint64, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, found, err = 0, false, fmt.Errorf("engine panic: %v", r)
		}
	}()
	return inst.engine.Solve(ctx, target, budget)
}

// State reports the lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Instances returns the initialized tables in escalation order, or nil before
// the dispatcher is ready.
func (d *Dispatcher) Instances() []InstanceInfo {
	instances, err := d.requireReady()
	if err != nil {
		return nil
	}
	infos := make([]InstanceInfo, len(instances))
	for i := range instances {
		infos[i] = instances[i].Info
	}
	return infos
}
