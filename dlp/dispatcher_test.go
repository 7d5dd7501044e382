package dlp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/kangaroo/log"
)

// fakeEngine answers every query the same way and records how it was used.
type fakeEngine struct {
	value     uint64
	found     bool
	err       error
	panicWith any
	badTarget bool

	calls      atomic.Int32
	lastBudget atomic.Int64
}

func (e *fakeEngine) ValidateTarget(target []byte) error {
	if e.badTarget || len(target) != 32 {
		return errors.New("bad target")
	}
	return nil
}

func (e *fakeEngine) Solve(ctx context.Context, target []byte, budget time.Duration) (uint64, bool, error) {
	e.calls.Add(1)
	e.lastBudget.Store(int64(budget))
	if e.panicWith != nil {
		panic(e.panicWith)
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	return e.value, e.found, e.err
}

func hit(v uint64) *fakeEngine     { return &fakeEngine{value: v, found: true} }
func miss() *fakeEngine            { return &fakeEngine{} }
func broken(err error) *fakeEngine { return &fakeEngine{err: err} }

var presetBits = []uint8{16, 32, 48}

func testDescriptors(n int) []*TableDescriptor {
	descs := make([]*TableDescriptor, n)
	for i := range descs {
		descs[i] = &TableDescriptor{
			Name:    fmt.Sprintf("t%d", i),
			Bits:    presetBits[i%len(presetBits)],
			N:       1,
			W:       8,
			R:       64,
			Payload: []byte("{}"),
		}
	}
	return descs
}

// fakeFactory hands out engines by descriptor position.
func fakeFactory(engines ...*fakeEngine) EngineFactory {
	return func(ctx context.Context, desc *TableDescriptor) (Engine, error) {
		var i int
		if _, err := fmt.Sscanf(desc.Name, "t%d", &i); err != nil || i >= len(engines) {
			return nil, fmt.Errorf("no engine for %q", desc.Name)
		}
		return engines[i], nil
	}
}

func newReady(t *testing.T, engines ...*fakeEngine) *Dispatcher {
	t.Helper()
	d := New(WithEngineFactory(fakeFactory(engines...)), WithLogger(log.NewNop()))
	require.NoError(t, d.Initialize(context.Background(), testDescriptors(len(engines))))
	return d
}

var target = make([]byte, 32)

func TestSolveNotInitialized(t *testing.T) {
	d := New(WithLogger(log.NewNop()))
	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, StateUninitialized, d.State())
	assert.Nil(t, d.Instances())
}

func TestInitializeTwice(t *testing.T) {
	first := hit(1)
	d := newReady(t, first)

	err := d.Initialize(context.Background(), testDescriptors(3))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, StateReady, d.State())
	require.Len(t, d.Instances(), 1)

	sol, err := d.Solve(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sol.Value)
	assert.Equal(t, int32(1), first.calls.Load())
}

func TestInitializeInProgress(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	factory := func(ctx context.Context, desc *TableDescriptor) (Engine, error) {
		once.Do(func() { close(entered) })
		<-release
		return hit(3), nil
	}
	d := New(WithEngineFactory(factory), WithLogger(log.NewNop()))

	done := make(chan error, 1)
	go func() { done <- d.Initialize(context.Background(), testDescriptors(2)) }()
	<-entered

	assert.Equal(t, StateInitializing, d.State())
	assert.ErrorIs(t, d.Initialize(context.Background(), testDescriptors(1)), ErrInitializationInProgress)
	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrInitializationInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, d.State())
	assert.Len(t, d.Instances(), 2)
}

func TestConcurrentInitialize(t *testing.T) {
	d := New(WithEngineFactory(fakeFactory(hit(1), hit(2), hit(3))), WithLogger(log.NewNop()))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Initialize(context.Background(), testDescriptors(3))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyInitialized), errors.Is(err, ErrInitializationInProgress):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, StateReady, d.State())
}

func TestSolveShortCircuit(t *testing.T) {
	engines := []*fakeEngine{hit(5), hit(7), hit(9)}
	d := newReady(t, engines...)

	sol, err := d.Solve(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sol.Value)
	assert.Equal(t, 0, sol.Index)
	assert.Equal(t, uint8(16), sol.Bits)
	assert.Equal(t, int32(1), engines[0].calls.Load())
	assert.Zero(t, engines[1].calls.Load())
	assert.Zero(t, engines[2].calls.Load())
}

func TestSolveEscalates(t *testing.T) {
	engines := []*fakeEngine{miss(), miss(), hit(1 << 40)}
	d := newReady(t, engines...)

	sol, err := d.Solve(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), sol.Value)
	assert.Equal(t, 2, sol.Index)
	assert.Equal(t, uint8(48), sol.Bits)
	for i, e := range engines {
		assert.Equal(t, int32(1), e.calls.Load(), "engine %d", i)
	}
}

func TestSolveNoSolution(t *testing.T) {
	engines := []*fakeEngine{miss(), miss(), miss()}
	d := newReady(t, engines...)

	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrNoSolutionFound)
	assert.Equal(t, KindNoSolutionFound, KindOf(err))
	for _, e := range engines {
		assert.Equal(t, int32(1), e.calls.Load())
	}
}

func TestSolveZeroIsFound(t *testing.T) {
	d := newReady(t, miss(), hit(0))
	sol, err := d.Solve(context.Background(), target)
	require.NoError(t, err)
	assert.Zero(t, sol.Value)
	assert.Equal(t, 1, sol.Index)
}

func TestSolveEngineErrorStops(t *testing.T) {
	cause := errors.New("table exploded")
	engines := []*fakeEngine{miss(), broken(cause), hit(9)}
	d := newReady(t, engines...)

	_, err := d.Solve(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindEngine, KindOf(err))

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, 1, engErr.Index)
	assert.Equal(t, uint8(32), engErr.Bits)
	assert.Zero(t, engines[2].calls.Load())
}

func TestSolveCorruptTableIsEngineFailure(t *testing.T) {
	engines := []*fakeEngine{broken(fmt.Errorf("%w: table checksum", ErrInvalidTableDescriptor))}
	d := newReady(t, engines...)

	_, err := d.Solve(context.Background(), target)
	require.ErrorIs(t, err, ErrEngine)
	assert.Equal(t, KindEngine, KindOf(err))
}

func TestSolveEnginePanic(t *testing.T) {
	engines := []*fakeEngine{{panicWith: "boom"}, hit(1)}
	d := newReady(t, engines...)

	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "boom")
	assert.Zero(t, engines[1].calls.Load())
}

func TestSolveInvalidTarget(t *testing.T) {
	engines := []*fakeEngine{hit(1), {badTarget: true, found: true}}
	d := newReady(t, engines...)

	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, KindInvalidTarget, KindOf(err))
	assert.Zero(t, engines[0].calls.Load())

	_, err = d.Solve(context.Background(), target[:31])
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestSolveCancelled(t *testing.T) {
	engines := []*fakeEngine{miss(), hit(1)}
	d := newReady(t, engines...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Solve(ctx, target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Zero(t, engines[1].calls.Load())
}

func TestSolveBudgets(t *testing.T) {
	engines := []*fakeEngine{miss(), miss()}
	d := New(WithEngineFactory(fakeFactory(engines...)), WithLogger(log.NewNop()))
	require.NoError(t, d.Initialize(context.Background(), testDescriptors(2), 50*time.Millisecond, Unbounded))

	infos := d.Instances()
	require.Len(t, infos, 2)
	assert.Equal(t, 50*time.Millisecond, infos[0].Budget)
	assert.Equal(t, Unbounded, infos[1].Budget)

	_, err := d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrNoSolutionFound)
	assert.Equal(t, int64(50*time.Millisecond), engines[0].lastBudget.Load())
	assert.Zero(t, engines[1].lastBudget.Load())

	_, err = d.Solve(context.Background(), target, time.Second, 2*time.Second)
	assert.ErrorIs(t, err, ErrNoSolutionFound)
	assert.Equal(t, int64(time.Second), engines[0].lastBudget.Load())
	assert.Equal(t, int64(2*time.Second), engines[1].lastBudget.Load())

	_, err = d.Solve(context.Background(), target, time.Second)
	assert.ErrorIs(t, err, ErrBudgetMismatch)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	_, err = d.Solve(context.Background(), target, time.Second, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidBudget)
	assert.Equal(t, int32(2), engines[0].calls.Load())
}

func TestInitializeRejectsBadInput(t *testing.T) {
	bad := testDescriptors(2)
	bad[1].W = 3
	empty := testDescriptors(1)
	empty[0].Payload = nil

	tests := []struct {
		name    string
		descs   []*TableDescriptor
		budgets []time.Duration
		want    error
	}{
		{"no tables", nil, nil, ErrInvalidTableDescriptor},
		{"nil descriptor", []*TableDescriptor{nil}, nil, ErrInvalidTableDescriptor},
		{"bad width", bad, nil, ErrInvalidTableDescriptor},
		{"empty payload", empty, nil, ErrInvalidTableDescriptor},
		{"budget count", testDescriptors(2), []time.Duration{time.Second}, ErrBudgetMismatch},
		{"negative budget", testDescriptors(1), []time.Duration{-1}, ErrInvalidBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(WithEngineFactory(fakeFactory(hit(1), hit(2))), WithLogger(log.NewNop()))
			err := d.Initialize(context.Background(), tt.descs, tt.budgets...)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateFailed, d.State())
		})
	}
}

func TestInitializeRetryAfterFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	factory := func(ctx context.Context, desc *TableDescriptor) (Engine, error) {
		if fail.Load() && desc.Name != "t0" {
			return nil, fmt.Errorf("%w: cannot load %s", ErrInvalidTableDescriptor, desc.Name)
		}
		return hit(11), nil
	}
	d := New(WithEngineFactory(factory), WithLogger(log.NewNop()))

	err := d.Initialize(context.Background(), testDescriptors(3))
	require.ErrorIs(t, err, ErrInvalidTableDescriptor)
	assert.Contains(t, err.Error(), "table 1")
	assert.Equal(t, StateFailed, d.State())

	_, err = d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrNotInitialized)

	fail.Store(false)
	require.NoError(t, d.Initialize(context.Background(), testDescriptors(3)))
	assert.Equal(t, StateReady, d.State())

	sol, err := d.Solve(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), sol.Value)
}

// A build that fails with a wrapped cancellation while the caller's context
// is live is still a failure.
func TestInitializeBuildCancelled(t *testing.T) {
	factory := func(ctx context.Context, desc *TableDescriptor) (Engine, error) {
		if desc.Name == "t0" {
			return nil, fmt.Errorf("loader aborted: %w", context.Canceled)
		}
		return hit(5), nil
	}
	d := New(WithEngineFactory(factory), WithLogger(log.NewNop()))

	err := d.Initialize(context.Background(), testDescriptors(2))
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "table 0")
	assert.Equal(t, StateFailed, d.State())
	assert.Nil(t, d.Instances())

	_, err = d.Solve(context.Background(), target)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// A real failure is reported ahead of a sibling's cancellation even when the
// cancellation has the lower index.
func TestInitializePrefersRealFailure(t *testing.T) {
	factory := func(ctx context.Context, desc *TableDescriptor) (Engine, error) {
		if desc.Name == "t0" {
			return nil, fmt.Errorf("loader aborted: %w", context.Canceled)
		}
		return nil, fmt.Errorf("%w: cannot load %s", ErrInvalidTableDescriptor, desc.Name)
	}
	d := New(WithEngineFactory(factory), WithLogger(log.NewNop()))

	err := d.Initialize(context.Background(), testDescriptors(2))
	require.ErrorIs(t, err, ErrInvalidTableDescriptor)
	assert.Contains(t, err.Error(), "table 1")
	assert.Equal(t, StateFailed, d.State())
}

func TestConcurrentSolve(t *testing.T) {
	engines := []*fakeEngine{miss(), hit(77)}
	d := newReady(t, engines...)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sol, err := d.Solve(context.Background(), target)
			if err != nil || sol.Value != 77 {
				t.Errorf("Solve: %v %+v", err, sol)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(64), engines[0].calls.Load())
	assert.Equal(t, int32(64), engines[1].calls.Load())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrNotInitialized, KindNotInitialized},
		{fmt.Errorf("wrapped: %w", ErrAlreadyInitialized), KindAlreadyInitialized},
		{ErrInitializationInProgress, KindInitializationInProgress},
		{ErrInvalidTableDescriptor, KindInvalidTableDescriptor},
		{ErrInvalidTarget, KindInvalidTarget},
		{ErrBudgetMismatch, KindInvalidBudget},
		{ErrNoSolutionFound, KindNoSolutionFound},
		{&EngineError{Err: errors.New("x")}, KindEngine},
		{&EngineError{Err: fmt.Errorf("%w: table checksum", ErrInvalidTableDescriptor)}, KindEngine},
		{&EngineError{Err: fmt.Errorf("%w: x", ErrInvalidTarget)}, KindEngine},
		{context.DeadlineExceeded, KindCanceled},
		{errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "no_solution_found", KindNoSolutionFound.String())
}
