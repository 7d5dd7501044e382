package dlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
	"github.com/tos-network/kangaroo/crypto/kangaroo/kangarootest"
	"github.com/tos-network/kangaroo/log"
)

func kangarooDescriptor(t *testing.T, bits uint8, w, r uint64) *TableDescriptor {
	t.Helper()
	p, tbl := kangarootest.NewTable(t, bits, w, r)
	payload, err := kangaroo.EncodeBinary(tbl, p)
	require.NoError(t, err)
	return &TableDescriptor{Bits: p.Bits, N: p.N, W: p.W, R: p.R, Payload: payload}
}

func TestKangarooEscalation(t *testing.T) {
	small := kangarooDescriptor(t, 6, 2, 8)
	large := kangarooDescriptor(t, 11, 4, 16)

	d := New(WithLogger(log.NewNop()))
	require.NoError(t, d.Initialize(context.Background(), []*TableDescriptor{small, large}))

	sol, err := d.Solve(context.Background(), kangarootest.Point(0))
	require.NoError(t, err)
	assert.Zero(t, sol.Value)
	assert.Equal(t, 0, sol.Index)

	sol, err = d.Solve(context.Background(), kangarootest.Point(37))
	require.NoError(t, err)
	assert.Equal(t, uint64(37), sol.Value)
	assert.Equal(t, 0, sol.Index)

	sol, err = d.Solve(context.Background(), kangarootest.Point(1500))
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), sol.Value)
	assert.Equal(t, uint8(11), sol.Bits)

	_, err = d.Solve(context.Background(), []byte("not a point"))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestKangarooEngineRejectsPayload(t *testing.T) {
	desc := kangarooDescriptor(t, 6, 2, 8)

	garbage := *desc
	garbage.Payload = []byte("KTAB garbage")
	_, err := NewKangarooEngine(context.Background(), &garbage)
	assert.ErrorIs(t, err, ErrInvalidTableDescriptor)
	assert.ErrorIs(t, err, kangaroo.ErrInvalidTable)

	wrongN := *desc
	wrongN.N++
	_, err = NewKangarooEngine(context.Background(), &wrongN)
	assert.ErrorIs(t, err, ErrInvalidTableDescriptor)

	d := New(WithLogger(log.NewNop()))
	err = d.Initialize(context.Background(), []*TableDescriptor{desc, &wrongN})
	assert.ErrorIs(t, err, ErrInvalidTableDescriptor)
	assert.Contains(t, err.Error(), "table 1")
	assert.Equal(t, StateFailed, d.State())
}
