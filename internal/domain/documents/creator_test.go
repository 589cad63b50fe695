package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/numerator"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
	"raccolta/internal/infrastructure/storage/storetest"
	"raccolta/pkg/logger"
)

type fixture struct {
	store   domain.Store
	creator *Creator
}

func newFixture(t *testing.T, store domain.Store, numbers numerator.Generator) *fixture {
	t.Helper()
	if store == nil {
		store = storetest.NewMemory(t)
	}
	if numbers == nil {
		numbers = counter.NewManager(store, counter.Config{AgentID: 7}, counter.WithLogger(logger.NewNop()))
	}
	c := NewCreator(
		numbers,
		sale_order.NewRepository(store),
		stock_picking.NewRepository(store),
		delivery_note.NewRepository(store),
		DefaultConfig(7),
	)
	return &fixture{store: store, creator: c}
}

func sampleInput() OrderInput {
	return OrderInput{
		PartnerID:   42,
		PartnerName: "Bar Centrale",
		Products: []ProductInput{
			{ID: 1, Quantity: types.NewQuantityFromInt(2), PriceUnit: types.MustMoney("10")},
		},
	}
}

func testContext() context.Context {
	return logger.WithLogger(context.Background(), logger.NewNop())
}

func TestCreateCompleteOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()

	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	o, p, d := out.Order, out.Picking, out.DeliveryNote
	assert.Equal(t, "RO/AG007/001", o.Name)
	assert.Equal(t, "PICK/AG007/001", p.Name)
	assert.Equal(t, "DDT/AG007/001", d.Name)

	assert.True(t, types.MustMoney("20").Equal(o.AmountUntaxed))
	assert.True(t, types.MustMoney("4.4").Equal(o.AmountTax))
	assert.True(t, types.MustMoney("24.4").Equal(o.AmountTotal))
	assert.Equal(t, sale_order.StateDraft, o.State)
	assert.True(t, o.PrintReceipt)
	assert.Equal(t, 30*24*time.Hour, o.ValidityDate.Sub(o.DateOrder))

	// causal chain
	assert.Equal(t, o.LocalID, p.OrderLocalID)
	assert.Equal(t, o.Name, p.Origin)
	assert.Equal(t, p.LocalID, d.PickingLocalID)
	assert.Equal(t, []string{p.LocalID, d.LocalID}, o.Links)
	assert.Equal(t, []string{d.LocalID}, p.Links)

	for _, doc := range []*entity.Document{&o.Document, &p.Document, &d.Document} {
		assert.Equal(t, entity.SyncPending, doc.SyncStatus)
		assert.Nil(t, doc.ServerID)
	}

	require.Len(t, p.Moves, 1)
	assert.Equal(t, types.NewQuantityFromInt(2), p.Moves[0].Planned)
	assert.Zero(t, p.Moves[0].Done)
	assert.Equal(t, "stock", p.Moves[0].Location)
	assert.Equal(t, "customer", p.Moves[0].LocationDest)
	assert.Equal(t, o.Lines[0].LocalID, p.Moves[0].OrderLineLocalID)

	assert.Equal(t, "Vendita", d.Reason)
	assert.Equal(t, "Porto Assegnato", d.Condition)
	assert.Equal(t, int64(1), d.PartnerSenderID)

	// persisted and reachable through indexes
	stored, err := f.creator.GetOrder(ctx, o.LocalID)
	require.NoError(t, err)
	assert.Equal(t, o.Name, stored.Name)

	pickings, err := f.creator.PickingsByOrder(ctx, o.LocalID)
	require.NoError(t, err)
	require.Len(t, pickings, 1)
	ddts, err := f.creator.DeliveryNotesByPicking(ctx, p.LocalID)
	require.NoError(t, err)
	require.Len(t, ddts, 1)

	second, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "RO/AG007/002", second.Order.Name)
}

func TestCreateRejectsInvalidBeforeNumbering(t *testing.T) {
	drawn := 0
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, docType string) (numerator.Number, error) {
			drawn++
			return numerator.Number{Value: 1}, nil
		},
	}
	f := newFixture(t, nil, gen)

	_, err := f.creator.CreateCompleteOrder(testContext(), OrderInput{
		Products: []ProductInput{{ID: 0, Quantity: 0}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, []string{
		"Cliente obbligatorio",
		"Prodotto 1: ID mancante",
		"Prodotto 1: Quantità non valida",
	}, apperror.ValidationMessages(err))
	assert.Zero(t, drawn)

	orders, err := f.creator.ListOrders(testContext(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestValidateOrderData(t *testing.T) {
	res := ValidateOrderData(OrderInput{Products: []ProductInput{}})
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Almeno un prodotto obbligatorio", res.Errors[0])
	assert.Contains(t, res.Errors, "Cliente obbligatorio")

	assert.True(t, ValidateOrderData(sampleInput()).Valid)
}

func TestCreateSurfacesNumberingFailure(t *testing.T) {
	boom := errors.New("counter store down")
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, docType string) (numerator.Number, error) {
			if docType == entity.DocTypeStockPicking {
				return numerator.Number{}, boom
			}
			return numerator.Number{Value: 1, Formatted: "X"}, nil
		},
	}
	f := newFixture(t, nil, gen)

	_, err := f.creator.CreateCompleteOrder(testContext(), sampleInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	orders, err := f.creator.ListOrders(testContext(), "")
	require.NoError(t, err)
	assert.Empty(t, orders, "nothing is saved when numbering fails")
}

func TestCreateSurfacesPartialSave(t *testing.T) {
	faulty := storetest.NewFaulty(storetest.NewMemory(t))
	faulty.FailSaves(domain.CollectionDDTs, true)
	f := newFixture(t, faulty, nil)
	ctx := testContext()

	_, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))

	// The saved part stays pending and is picked up by the next sync.
	pending, err := f.creator.ListOrders(ctx, entity.SyncPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReservedNumbering(t *testing.T) {
	store := storetest.NewMemory(t)
	mgr := counter.NewManager(store, counter.Config{AgentID: 7}, counter.WithLogger(logger.NewNop()))
	f := newFixture(t, store, mgr)
	f.creator.cfg.Numbering = numerator.StrategyReserved
	ctx := testContext()

	_, err := mgr.ReserveNumbers(ctx, entity.DocTypeSaleOrder, 2)
	require.NoError(t, err)

	var names []string
	for i := 0; i < 3; i++ {
		out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
		require.NoError(t, err)
		names = append(names, out.Order.Name)
	}
	assert.Equal(t, []string{"RO/AG007/001", "RO/AG007/002", "RO/AG007/003"}, names)
}

func TestUpdateOrderRecomputesTotals(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	note := "consegna mattina"
	products := []ProductInput{
		{ID: 1, Quantity: types.NewQuantityFromInt(1), PriceUnit: types.MustMoney("10")},
		{ID: 2, Quantity: types.NewQuantityFromInt(4), PriceUnit: types.MustMoney("2.5"), Discount: types.MustMoney("50")},
	}
	o, err := f.creator.UpdateOrder(ctx, out.Order.LocalID, OrderUpdate{Note: &note, Products: &products})
	require.NoError(t, err)
	assert.Equal(t, note, o.Note)
	require.Len(t, o.Lines, 2)
	assert.True(t, types.MustMoney("15").Equal(o.AmountUntaxed))
	assert.True(t, types.MustMoney("18.3").Equal(o.AmountTotal))
	assert.Equal(t, "Bar Centrale", o.PartnerName)

	empty := []ProductInput{}
	_, err = f.creator.UpdateOrder(ctx, out.Order.LocalID, OrderUpdate{Products: &empty})
	assert.True(t, apperror.IsValidation(err))
}

func TestSyncedDocumentsAreImmutable(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	out.Order.MarkSynced(900, time.Now())
	require.NoError(t, f.creator.orders.Save(ctx, out.Order))

	note := "late"
	_, err = f.creator.UpdateOrder(ctx, out.Order.LocalID, OrderUpdate{Note: &note})
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentSynced))
	_, err = f.creator.ConfirmOrder(ctx, out.Order.LocalID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentSynced))
	err = f.creator.DeleteCompleteOrder(ctx, out.Order.LocalID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentSynced))
}

func TestConfirmChain(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	o, err := f.creator.ConfirmOrder(ctx, out.Order.LocalID)
	require.NoError(t, err)
	assert.Equal(t, sale_order.StateConfirmed, o.State)

	p, err := f.creator.ConfirmPicking(ctx, out.Picking.LocalID)
	require.NoError(t, err)
	assert.Equal(t, stock_picking.StateDone, p.State)
	assert.Equal(t, p.Moves[0].Planned, p.Moves[0].Done)

	d, err := f.creator.ValidateDdt(ctx, out.DeliveryNote.LocalID)
	require.NoError(t, err)
	assert.Equal(t, delivery_note.StateDone, d.State)

	stored, err := f.creator.GetDeliveryNote(ctx, d.LocalID)
	require.NoError(t, err)
	assert.Equal(t, delivery_note.StateDone, stored.State)
	require.NotNil(t, stored.ValidationDate)
	assert.True(t, d.ValidationDate.Equal(*stored.ValidationDate))
}

func TestUpdatePickingAndDdt(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	when := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	p, err := f.creator.UpdatePicking(ctx, out.Picking.LocalID, PickingUpdate{ScheduledDate: &when})
	require.NoError(t, err)
	assert.True(t, when.Equal(p.ScheduledDate))

	d, err := f.creator.UpdateDdt(ctx, out.DeliveryNote.LocalID, delivery_note.Transport{CarrierName: "BRT", Packages: "3"})
	require.NoError(t, err)
	assert.Equal(t, "BRT", d.CarrierName)
	assert.Equal(t, "3", d.Packages)
	assert.Equal(t, "Vendita", d.Reason)
}

func TestDuplicateOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	in := sampleInput()
	in.Note = "ripetere ogni mese"
	src, err := f.creator.CreateCompleteOrder(ctx, in)
	require.NoError(t, err)

	dup, err := f.creator.DuplicateOrder(ctx, src.Order.LocalID)
	require.NoError(t, err)

	assert.NotEqual(t, src.Order.LocalID, dup.Order.LocalID)
	assert.NotEqual(t, src.Picking.LocalID, dup.Picking.LocalID)
	assert.Equal(t, "RO/AG007/002", dup.Order.Name)
	assert.Equal(t, src.Order.PartnerID, dup.Order.PartnerID)
	assert.Equal(t, "ripetere ogni mese", dup.Order.Note)
	assert.True(t, src.Order.AmountTotal.Equal(dup.Order.AmountTotal))
	assert.NotEqual(t, src.Order.Lines[0].LocalID, dup.Order.Lines[0].LocalID)
}

func TestDeleteCompleteOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()
	out, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	require.NoError(t, f.creator.DeleteCompleteOrder(ctx, out.Order.LocalID))

	_, err = f.creator.GetOrder(ctx, out.Order.LocalID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.creator.GetPicking(ctx, out.Picking.LocalID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.creator.GetDeliveryNote(ctx, out.DeliveryNote.LocalID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCleanupSynced(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := testContext()

	old, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)
	recent, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)
	pending, err := f.creator.CreateCompleteOrder(ctx, sampleInput())
	require.NoError(t, err)

	old.Order.MarkSynced(1, time.Now().Add(-10*24*time.Hour))
	require.NoError(t, f.creator.orders.Save(ctx, old.Order))
	recent.Order.MarkSynced(2, time.Now())
	require.NoError(t, f.creator.orders.Save(ctx, recent.Order))

	removed, err := f.creator.CleanupSynced(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.creator.GetOrder(ctx, old.Order.LocalID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.creator.GetOrder(ctx, recent.Order.LocalID)
	assert.NoError(t, err)
	_, err = f.creator.GetOrder(ctx, pending.Order.LocalID)
	assert.NoError(t, err)
}
