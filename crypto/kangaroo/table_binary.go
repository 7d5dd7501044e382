package kangaroo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"
)

const (
	binaryVersion    = 1
	binaryHeaderSize = 4 + 1 + 1 + 4*8 + 4
	pointEntrySize   = len(Point{}) + 8
)

var binaryMagic = []byte("KTAB")

// EncodeBinary serializes the table with its parameters into the compact
// binary layout: a fixed header followed by a snappy compressed body.
//
//	magic "KTAB" | version u8 | bits u8 | n u64 | w u64 | r u64 | i u64 | body length u32 | body
func EncodeBinary(t *Table, p Parameters) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := t.CheckShape(p); err != nil {
		return nil, err
	}
	body := make([]byte, 0, len(t.Jumps)*pointEntrySize+len(t.Points)*pointEntrySize)
	var word [8]byte
	for i := range t.Jumps {
		body = append(body, t.Jumps[i][:]...)
		binary.BigEndian.PutUint64(word[:], t.JumpLogs[i])
		body = append(body, word[:]...)
	}
	for _, pt := range t.sortedPoints() {
		body = append(body, pt[:]...)
		binary.BigEndian.PutUint64(word[:], t.Points[pt])
		body = append(body, word[:]...)
	}
	compressed := snappy.Encode(nil, body)

	out := make([]byte, binaryHeaderSize, binaryHeaderSize+len(compressed))
	copy(out, binaryMagic)
	out[4] = binaryVersion
	out[5] = p.Bits
	binary.BigEndian.PutUint64(out[6:], p.N)
	binary.BigEndian.PutUint64(out[14:], p.W)
	binary.BigEndian.PutUint64(out[22:], p.R)
	binary.BigEndian.PutUint64(out[30:], p.I)
	binary.BigEndian.PutUint32(out[38:], uint32(len(compressed)))
	return append(out, compressed...), nil
}

// IsBinary reports whether data starts with the binary table magic.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, binaryMagic)
}

// DecodeBinary parses a table produced by EncodeBinary. The returned table
// does not reference data.
func DecodeBinary(data []byte) (*Table, error) {
	if len(data) < binaryHeaderSize || !IsBinary(data) {
		return nil, fmt.Errorf("%w: missing binary header", ErrInvalidTable)
	}
	if v := data[4]; v != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported binary version %d", ErrInvalidTable, v)
	}
	header := Parameters{
		Bits: data[5],
		N:    binary.BigEndian.Uint64(data[6:]),
		W:    binary.BigEndian.Uint64(data[14:]),
		R:    binary.BigEndian.Uint64(data[22:]),
		I:    binary.BigEndian.Uint64(data[30:]),
	}
	if err := header.Validate(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidTable, err)
	}
	size := binary.BigEndian.Uint32(data[38:])
	if uint64(len(data)-binaryHeaderSize) != uint64(size) {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrInvalidTable, len(data)-binaryHeaderSize, size)
	}
	body, err := snappy.Decode(nil, data[binaryHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	// Guard the multiplication below against absurd headers.
	if header.R > uint64(len(body)) || header.N > uint64(len(body)) {
		return nil, fmt.Errorf("%w: header counts exceed body", ErrInvalidTable)
	}
	if want := (header.R + header.N) * uint64(pointEntrySize); uint64(len(body)) != want {
		return nil, fmt.Errorf("%w: body holds %d bytes, want %d", ErrInvalidTable, len(body), want)
	}
	t := &Table{
		Jumps:    make([]Point, header.R),
		JumpLogs: make([]uint64, header.R),
		Points:   make(map[Point]uint64, header.N),
		Header:   &header,
	}
	for i := range t.Jumps {
		copy(t.Jumps[i][:], body)
		t.JumpLogs[i] = binary.BigEndian.Uint64(body[len(Point{}):])
		body = body[pointEntrySize:]
	}
	for i := uint64(0); i < header.N; i++ {
		var pt Point
		copy(pt[:], body)
		if _, dup := t.Points[pt]; dup {
			return nil, fmt.Errorf("%w: duplicate distinguished point %d", ErrInvalidTable, i)
		}
		t.Points[pt] = binary.BigEndian.Uint64(body[len(pt):])
		body = body[pointEntrySize:]
	}
	return t, nil
}

// ParseTable decodes either encoding, telling them apart by the binary magic.
func ParseTable(data []byte) (*Table, error) {
	if IsBinary(data) {
		return DecodeBinary(data)
	}
	return ParseJSON(data)
}

// OpenTableFile memory-maps a table file and decodes it. The mapping is
// released before returning.
func OpenTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidTable, path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	t, err := ParseTable(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.FileName == "" {
		t.FileName = info.Name()
	}
	return t, nil
}

// ReadTableFile is like OpenTableFile but returns the raw file contents as
// well, for callers that persist the encoding.
func ReadTableFile(path string) (*Table, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, data, nil
}
