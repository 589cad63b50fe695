package stock_picking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/types"
)

func TestConfirmFulfilsEveryMove(t *testing.T) {
	p := NewPicking(7, "AG007", "order_1", "RO/AG007/001", 42)
	p.AddMove(Move{ProductID: 1, Planned: types.NewQuantityFromInt(2), Done: types.NewQuantityFromInt(9)})
	p.AddMove(Move{ProductID: 2, Planned: types.NewQuantityFromFloat64(0.5)})

	assert.Zero(t, p.Moves[0].Done, "new moves start with nothing done")
	assert.Equal(t, StateDraft, p.Moves[1].State)

	require.NoError(t, p.Confirm())
	assert.Equal(t, StateDone, p.State)
	assert.NotNil(t, p.DateDone)
	for _, m := range p.Moves {
		assert.Equal(t, m.Planned, m.Done)
		assert.Equal(t, StateDone, m.State)
	}

	assert.True(t, apperror.HasCode(p.Confirm(), apperror.CodeInvalidState))
}

func TestStoreIndexes(t *testing.T) {
	p := NewPicking(7, "AG007", "order_1", "RO/AG007/001", 42)
	idx := p.StoreIndexes()
	assert.Equal(t, "order_1", idx["order_local_id"])
	assert.Equal(t, "pending", idx["sync_status"])
}
