// Package mobile exposes the discrete-log dispatcher to host applications
// through gomobile bind. It holds the single process-wide dispatcher.
package mobile

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/holiman/uint256"

	"github.com/tos-network/kangaroo/dlp"
	"github.com/tos-network/kangaroo/log"
)

// resultCacheSize bounds the memory used to remember recovered values.
const resultCacheSize = 4 * 1024 * 1024

var (
	dispatcher = dlp.New()
	results    = fastcache.New(resultCacheSize) // target -> encoded Scalar
)

// Scalar is a recovered discrete logarithm.
type Scalar struct {
	value   uint64
	bits    int
	index   int
	elapsed time.Duration
}

// GetString returns the value in decimal. It covers the full 64-bit range.
func (s *Scalar) GetString() string {
	return uint256.NewInt(s.value).Dec()
}

// GetInt64 returns the value as a signed integer. Values of 2^63 and above
// wrap around; use GetString for those.
func (s *Scalar) GetInt64() int64 { return int64(s.value) }

// GetBits returns the bit width of the table that found the value.
func (s *Scalar) GetBits() int { return s.bits }

// GetTableIndex returns the position of that table.
func (s *Scalar) GetTableIndex() int { return s.index }

// GetElapsedMillis returns the search time. Cached answers report zero.
func (s *Scalar) GetElapsedMillis() int64 { return s.elapsed.Milliseconds() }

// InitializeKangaroo loads the tables described by a JSON array of
// {bits, n, w, r, i?, budget_ms?, table | table_b64} objects. Tables are
// searched in the given order. It succeeds at most once per process.
func InitializeKangaroo(descriptorsJSON string) error {
	descs, budgets, err := parseDescriptors(descriptorsJSON)
	if err != nil {
		return err
	}
	return wrapError(dispatcher.Initialize(context.Background(), descs, budgets...))
}

// InitializeKangarooTables is InitializeKangaroo for hosts that build the
// table list natively.
func InitializeKangarooTables(tables *TableList) error {
	if tables == nil {
		return newError(CodeInvalidTableDescriptor, "no tables")
	}
	descs, budgets, err := tables.descriptors()
	if err != nil {
		return err
	}
	return wrapError(dispatcher.Initialize(context.Background(), descs, budgets...))
}

// IsInitialized reports whether the tables are loaded.
func IsInitialized() bool {
	return dispatcher.State() == dlp.StateReady
}

// SolveDlp recovers x from the 32-byte encoding of x·G using the budgets
// given at initialization.
func SolveDlp(target []byte) (*Scalar, error) {
	return solve(target, nil)
}

// SolveDlpWithBudgets is SolveDlp with one comma separated millisecond budget
// per table, zero meaning unbounded.
func SolveDlpWithBudgets(target []byte, budgetsMillis string) (*Scalar, error) {
	budgets, err := parseBudgets(budgetsMillis)
	if err != nil {
		return nil, err
	}
	return solve(target, budgets)
}

// SolveDlpDecimal accepts the target encoding as a non-negative decimal
// integer, read as 32 big-endian bytes.
func SolveDlpDecimal(decimal string) (*Scalar, error) {
	z, err := uint256.FromDecimal(strings.TrimSpace(decimal))
	if err != nil {
		return nil, newError(CodeInvalidTarget, "target %q: %v", decimal, err)
	}
	target := z.Bytes32()
	return solve(target[:], nil)
}

// SetVerbosity sets the log level of the binding, e.g. "info" or "debug".
func SetVerbosity(level string) error {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return newError(CodeUnknown, "%v", err)
	}
	log.SetLevel(lvl)
	return nil
}

func solve(target []byte, budgets []time.Duration) (*Scalar, error) {
	// Initialization cannot be undone, so cached answers stay valid. Explicit
	// budgets bypass the cache so that their validation still runs.
	if len(budgets) == 0 {
		if enc := results.Get(nil, target); len(enc) == encodedScalarSize {
			return decodeScalar(enc), nil
		}
	}
	sol, err := dispatcher.Solve(context.Background(), target, budgets...)
	if err != nil {
		return nil, wrapError(err)
	}
	s := &Scalar{value: sol.Value, bits: int(sol.Bits), index: sol.Index, elapsed: sol.Elapsed}
	results.Set(target, encodeScalar(s))
	return s, nil
}

func parseBudgets(list string) ([]time.Duration, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	fields := strings.Split(list, ",")
	budgets := make([]time.Duration, len(fields))
	for i, f := range fields {
		ms, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, newError(CodeInvalidBudget, "budget %d: %v", i, err)
		}
		if budgets[i], err = millisBudget(ms); err != nil {
			return nil, newError(CodeInvalidBudget, "budget %d: %v", i, err)
		}
	}
	return budgets, nil
}

// encodedScalarSize is value u64 | bits u8 | index u16.
const encodedScalarSize = 11

func encodeScalar(s *Scalar) []byte {
	enc := make([]byte, encodedScalarSize)
	binary.BigEndian.PutUint64(enc, s.value)
	enc[8] = byte(s.bits)
	binary.BigEndian.PutUint16(enc[9:], uint16(s.index))
	return enc
}

func decodeScalar(enc []byte) *Scalar {
	return &Scalar{
		value: binary.BigEndian.Uint64(enc),
		bits:  int(enc[8]),
		index: int(binary.BigEndian.Uint16(enc[9:])),
	}
}
