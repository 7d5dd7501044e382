package kangaroo

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// jsonTable is the layout published by the reference table generator.
type jsonTable struct {
	FileName string       `json:"file_name"`
	S        []string     `json:"s"`
	Slog     []string     `json:"slog"`
	Table    []jsonLookup `json:"table"`
}

type jsonLookup struct {
	Point string `json:"point"`
	Value string `json:"value"`
}

// ParseJSON decodes a table in the reference JSON layout.
func ParseJSON(data []byte) (*Table, error) {
	var raw jsonTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if len(raw.S) != len(raw.Slog) {
		return nil, fmt.Errorf("%w: %d jumps but %d jump logs", ErrInvalidTable, len(raw.S), len(raw.Slog))
	}
	t := &Table{
		FileName: raw.FileName,
		Jumps:    make([]Point, len(raw.S)),
		JumpLogs: make([]uint64, len(raw.Slog)),
		Points:   make(map[Point]uint64, len(raw.Table)),
	}
	for i, s := range raw.S {
		if err := decodePointHex(&t.Jumps[i], s); err != nil {
			return nil, fmt.Errorf("%w: s[%d]: %v", ErrInvalidTable, i, err)
		}
	}
	for i, s := range raw.Slog {
		v, err := decodeScalarString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: slog[%d]: %v", ErrInvalidTable, i, err)
		}
		t.JumpLogs[i] = v
	}
	for i, e := range raw.Table {
		var p Point
		if err := decodePointHex(&p, e.Point); err != nil {
			return nil, fmt.Errorf("%w: table[%d].point: %v", ErrInvalidTable, i, err)
		}
		v, err := decodeScalarString(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: table[%d].value: %v", ErrInvalidTable, i, err)
		}
		if _, dup := t.Points[p]; dup {
			return nil, fmt.Errorf("%w: table[%d]: duplicate distinguished point", ErrInvalidTable, i)
		}
		t.Points[p] = v
	}
	return t, nil
}

// MarshalJSON encodes the table in the reference JSON layout. Points are
// emitted in byte order.
func (t *Table) MarshalJSON() ([]byte, error) {
	raw := jsonTable{
		FileName: t.FileName,
		S:        make([]string, len(t.Jumps)),
		Slog:     make([]string, len(t.JumpLogs)),
		Table:    make([]jsonLookup, 0, len(t.Points)),
	}
	for i := range t.Jumps {
		raw.S[i] = hex.EncodeToString(t.Jumps[i][:])
	}
	for i, v := range t.JumpLogs {
		raw.Slog[i] = encodeScalarHex(v)
	}
	for _, p := range t.sortedPoints() {
		raw.Table = append(raw.Table, jsonLookup{
			Point: hex.EncodeToString(p[:]),
			Value: encodeScalarHex(t.Points[p]),
		})
	}
	return json.Marshal(raw)
}

func decodePointHex(dst *Point, s string) error {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("point is %d bytes, want %d", len(b), len(dst))
	}
	copy(dst[:], b)
	return nil
}

// decodeScalarString accepts a 32-byte little-endian hex scalar or a plain
// decimal integer.
func decodeScalarString(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 64 {
		b, err := hex.DecodeString(s)
		if err != nil {
			return 0, err
		}
		return scalarToUint64(b)
	}
	return strconv.ParseUint(s, 10, 64)
}

func encodeScalarHex(v uint64) string {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	return hex.EncodeToString(buf[:])
}
