package mobile

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tos-network/kangaroo/dlp"
)

// Table is one precomputed table handed over by the host.
type Table struct {
	Bits         int
	N, W, R, I   int64
	BudgetMillis int64 // zero searches without a time limit
	Payload      []byte
}

// NewTable creates a table descriptor with the default walk length.
func NewTable(bits int, n, w, r int64, payload []byte) *Table {
	return &Table{Bits: bits, N: n, W: w, R: r, Payload: payload}
}

// TableList is an ordered list of tables, smallest bit width first.
type TableList struct {
	tables []*Table
}

// NewTableList creates an empty list.
func NewTableList() *TableList { return new(TableList) }

// Append adds a table to the end of the list.
func (l *TableList) Append(t *Table) { l.tables = append(l.tables, t) }

// Size returns the number of tables.
func (l *TableList) Size() int { return len(l.tables) }

// Get returns the table at index i, or nil when out of range.
func (l *TableList) Get(i int) *Table {
	if i < 0 || i >= len(l.tables) {
		return nil
	}
	return l.tables[i]
}

// jsonDescriptor is the JSON form accepted by InitializeKangaroo. Exactly one
// of Table (a reference JSON table) and TableB64 (a binary table) is set.
type jsonDescriptor struct {
	Bits     uint8           `json:"bits"`
	N        uint64          `json:"n"`
	W        uint64          `json:"w"`
	R        uint64          `json:"r"`
	I        uint64          `json:"i,omitempty"`
	BudgetMs int64           `json:"budget_ms,omitempty"`
	Table    json.RawMessage `json:"table,omitempty"`
	TableB64 []byte          `json:"table_b64,omitempty"`
}

func parseDescriptors(input string) ([]*dlp.TableDescriptor, []time.Duration, error) {
	var raw []jsonDescriptor
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, nil, newError(CodeInvalidTableDescriptor, "malformed descriptor list: %v", err)
	}
	descs := make([]*dlp.TableDescriptor, len(raw))
	budgets := make([]time.Duration, len(raw))
	for i, d := range raw {
		payload := []byte(d.Table)
		switch {
		case len(d.Table) > 0 && len(d.TableB64) > 0:
			return nil, nil, newError(CodeInvalidTableDescriptor, "descriptor %d has both table and table_b64", i)
		case len(d.TableB64) > 0:
			payload = d.TableB64
		}
		descs[i] = &dlp.TableDescriptor{Bits: d.Bits, N: d.N, W: d.W, R: d.R, I: d.I, Payload: payload}
		b, err := millisBudget(d.BudgetMs)
		if err != nil {
			return nil, nil, newError(CodeInvalidBudget, "descriptor %d: %v", i, err)
		}
		budgets[i] = b
	}
	return descs, budgets, nil
}

func (l *TableList) descriptors() ([]*dlp.TableDescriptor, []time.Duration, error) {
	descs := make([]*dlp.TableDescriptor, len(l.tables))
	budgets := make([]time.Duration, len(l.tables))
	for i, t := range l.tables {
		if t == nil {
			return nil, nil, newError(CodeInvalidTableDescriptor, "table %d is nil", i)
		}
		if t.Bits < 0 || t.Bits > 255 || t.N < 0 || t.W < 0 || t.R < 0 || t.I < 0 {
			return nil, nil, newError(CodeInvalidTableDescriptor, "table %d has negative or oversized parameters", i)
		}
		descs[i] = &dlp.TableDescriptor{
			Bits:    uint8(t.Bits),
			N:       uint64(t.N),
			W:       uint64(t.W),
			R:       uint64(t.R),
			I:       uint64(t.I),
			Payload: t.Payload,
		}
		b, err := millisBudget(t.BudgetMillis)
		if err != nil {
			return nil, nil, newError(CodeInvalidBudget, "table %d: %v", i, err)
		}
		budgets[i] = b
	}
	return descs, budgets, nil
}

// maxBudgetMillis is the largest millisecond count a time.Duration can hold.
const maxBudgetMillis = math.MaxInt64 / int64(time.Millisecond)

// millisBudget converts a host supplied millisecond budget. Negative values
// pass through and are rejected by the dispatcher.
func millisBudget(ms int64) (time.Duration, error) {
	if ms > maxBudgetMillis || ms < -maxBudgetMillis {
		return 0, fmt.Errorf("budget of %d ms is out of range", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
