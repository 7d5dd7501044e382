package mobile

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
	"github.com/tos-network/kangaroo/crypto/kangaroo/kangarootest"
	"github.com/tos-network/kangaroo/dlp"
	"github.com/tos-network/kangaroo/log"
)

func reset(t *testing.T) {
	t.Helper()
	dispatcher = dlp.New(dlp.WithLogger(log.NewNop()))
	results.Reset()
}

// descriptorsJSON returns a 6-bit table in the reference JSON layout followed
// by an 11-bit binary table.
func descriptorsJSON(t *testing.T) string {
	t.Helper()
	ps, small := kangarootest.NewTable(t, 6, 2, 8)
	smallJSON, err := small.MarshalJSON()
	require.NoError(t, err)

	pl, large := kangarootest.NewTable(t, 11, 4, 16)
	largeBin, err := kangaroo.EncodeBinary(large, pl)
	require.NoError(t, err)

	return fmt.Sprintf(`[
		{"bits": %d, "n": %d, "w": %d, "r": %d, "budget_ms": 0, "table": %s},
		{"bits": %d, "n": %d, "w": %d, "r": %d, "table_b64": %q}
	]`, ps.Bits, ps.N, ps.W, ps.R, smallJSON,
		pl.Bits, pl.N, pl.W, pl.R, base64.StdEncoding.EncodeToString(largeBin))
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var merr *Error
	require.True(t, errors.As(err, &merr), "not a binding error: %v", err)
	assert.Equal(t, code, merr.GetCode(), merr.GetMessage())
}

func TestSolveBeforeInitialize(t *testing.T) {
	reset(t)
	_, err := SolveDlp(kangarootest.Point(1))
	requireCode(t, err, CodeNotInitialized)
	assert.False(t, IsInitialized())
}

func TestInitializeAndSolve(t *testing.T) {
	reset(t)
	input := descriptorsJSON(t)
	require.NoError(t, InitializeKangaroo(input))
	assert.True(t, IsInitialized())

	requireCode(t, InitializeKangaroo(input), CodeAlreadyInitialized)

	s, err := SolveDlp(kangarootest.Point(37))
	require.NoError(t, err)
	assert.Equal(t, "37", s.GetString())
	assert.Equal(t, int64(37), s.GetInt64())
	assert.Equal(t, 6, s.GetBits())

	s, err = SolveDlp(kangarootest.Point(1500))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), s.GetInt64())
	assert.Equal(t, 1, s.GetTableIndex())

	cached, err := SolveDlp(kangarootest.Point(1500))
	require.NoError(t, err)
	assert.Equal(t, "1500", cached.GetString())
	assert.Equal(t, 11, cached.GetBits())
	assert.Zero(t, cached.GetElapsedMillis())

	_, err = SolveDlp(kangarootest.Point(1 << 40))
	requireCode(t, err, CodeNoSolutionFound)

	_, err = SolveDlp([]byte{1, 2, 3})
	requireCode(t, err, CodeInvalidTarget)
}

func TestSolveDecimal(t *testing.T) {
	reset(t)
	require.NoError(t, InitializeKangaroo(descriptorsJSON(t)))

	// The identity encodes as 32 zero bytes, which a variable width
	// conversion would shrink to nothing.
	s, err := SolveDlpDecimal("0")
	require.NoError(t, err)
	assert.Equal(t, "0", s.GetString())

	for _, x := range []uint64{5, 63, 700} {
		dec := new(uint256.Int).SetBytes32(kangarootest.Point(x)).Dec()
		s, err := SolveDlpDecimal(dec)
		require.NoError(t, err, "x=%d", x)
		assert.Equal(t, x, uint64(s.GetInt64()))
	}
	for _, bad := range []string{"", "-5", "abc", "1" + fmt.Sprint(uint64(1)<<63) + "0000000000000000000000000000000000000000000000000000000000000"} {
		_, err := SolveDlpDecimal(bad)
		requireCode(t, err, CodeInvalidTarget)
	}
}

func TestSolveWithBudgets(t *testing.T) {
	reset(t)
	require.NoError(t, InitializeKangaroo(descriptorsJSON(t)))

	s, err := SolveDlpWithBudgets(kangarootest.Point(9), "0, 250")
	require.NoError(t, err)
	assert.Equal(t, int64(9), s.GetInt64())

	_, err = SolveDlpWithBudgets(kangarootest.Point(9), "100")
	requireCode(t, err, CodeInvalidBudget)
	_, err = SolveDlpWithBudgets(kangarootest.Point(9), "1,x")
	requireCode(t, err, CodeInvalidBudget)
	_, err = SolveDlpWithBudgets(kangarootest.Point(9), "1,-1")
	requireCode(t, err, CodeInvalidBudget)
	// Past the range of time.Duration.
	_, err = SolveDlpWithBudgets(kangarootest.Point(9), "0,9300000000000")
	requireCode(t, err, CodeInvalidBudget)
}

func TestOversizedBudgets(t *testing.T) {
	reset(t)
	requireCode(t, InitializeKangaroo(`[{"bits": 6, "n": 1, "w": 2, "r": 8, "budget_ms": 9300000000000, "table": {}}]`), CodeInvalidBudget)
	assert.False(t, IsInitialized())

	list := NewTableList()
	list.Append(NewTable(6, 1, 2, 8, []byte("{}")))
	list.Get(0).BudgetMillis = math.MaxInt64
	requireCode(t, InitializeKangarooTables(list), CodeInvalidBudget)
	assert.False(t, IsInitialized())

	b, err := millisBudget(maxBudgetMillis)
	require.NoError(t, err)
	assert.Positive(t, b)
}

func TestInitializeTables(t *testing.T) {
	reset(t)
	p, tbl := kangarootest.NewTable(t, 6, 2, 8)
	payload, err := kangaroo.EncodeBinary(tbl, p)
	require.NoError(t, err)

	requireCode(t, InitializeKangarooTables(nil), CodeInvalidTableDescriptor)

	list := NewTableList()
	list.Append(NewTable(int(p.Bits), int64(p.N), int64(p.W), int64(p.R), payload))
	assert.Equal(t, 1, list.Size())
	assert.Nil(t, list.Get(1))
	list.Get(0).BudgetMillis = 100

	require.NoError(t, InitializeKangarooTables(list))
	s, err := SolveDlp(kangarootest.Point(21))
	require.NoError(t, err)
	assert.Equal(t, "21", s.GetString())
}

func TestInitializeRejectsBadDescriptors(t *testing.T) {
	for name, input := range map[string]string{
		"malformed":  `{"bits": 16`,
		"empty":      `[]`,
		"both forms": `[{"bits": 6, "n": 1, "w": 2, "r": 8, "table": {}, "table_b64": "S1RBQg=="}]`,
		"no payload": `[{"bits": 6, "n": 1, "w": 2, "r": 8}]`,
		"bad width":  `[{"bits": 6, "n": 1, "w": 3, "r": 8, "table": {}}]`,
	} {
		t.Run(name, func(t *testing.T) {
			reset(t)
			requireCode(t, InitializeKangaroo(input), CodeInvalidTableDescriptor)
			assert.False(t, IsInitialized())
		})
	}
}

func TestScalarRange(t *testing.T) {
	s := &Scalar{value: 1 << 63}
	assert.Equal(t, "9223372036854775808", s.GetString())
	assert.Negative(t, s.GetInt64())

	dec := decodeScalar(encodeScalar(&Scalar{value: 42, bits: 48, index: 2}))
	assert.Equal(t, uint64(42), dec.value)
	assert.Equal(t, 48, dec.bits)
	assert.Equal(t, 2, dec.index)
}

func TestErrorCodes(t *testing.T) {
	for err, code := range map[error]int{
		dlp.ErrNotInitialized:                  CodeNotInitialized,
		dlp.ErrInitializationInProgress:        CodeInitializationInProgress,
		&dlp.EngineError{Err: errors.New("x")}: CodeEngine,
		errors.New("other"):                    CodeUnknown,
	} {
		requireCode(t, wrapError(err), code)
	}
	assert.NoError(t, wrapError(nil))

	var merr *Error
	require.True(t, errors.As(wrapError(dlp.ErrNoSolutionFound), &merr))
	out, err := json.Marshal(merr)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Code":7`)
}
