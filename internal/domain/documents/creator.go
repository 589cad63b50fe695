// Package documents builds and maintains the Order -> Picking -> DeliveryNote
// chain created by an agent while offline.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raccolta/internal/core/apperror"
	appctx "raccolta/internal/core/context"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/numerator"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
	"raccolta/pkg/logger"
)

// CompleteOrder is the result of one creation pipeline run.
type CompleteOrder struct {
	Order        *sale_order.Order           `json:"order"`
	Picking      *stock_picking.Picking      `json:"picking"`
	DeliveryNote *delivery_note.DeliveryNote `json:"ddt"`
}

// Creator owns creation and local mutation of agent documents.
type Creator struct {
	numbers  numerator.Generator
	orders   *sale_order.Repository
	pickings *stock_picking.Repository
	ddts     *delivery_note.Repository
	cfg      Config
}

// NewCreator wires the creator to its numbering source and repositories.
func NewCreator(
	numbers numerator.Generator,
	orders *sale_order.Repository,
	pickings *stock_picking.Repository,
	ddts *delivery_note.Repository,
	cfg Config,
) *Creator {
	if cfg.AgentCode == "" {
		cfg.AgentCode = appctx.AgentCode(cfg.AgentID)
	}
	return &Creator{
		numbers:  numbers,
		orders:   orders,
		pickings: pickings,
		ddts:     ddts,
		cfg:      cfg,
	}
}

// ValidateOrderData checks a payload without side effects.
func (c *Creator) ValidateOrderData(in OrderInput) ValidationResult {
	return ValidateOrderData(in)
}

func (c *Creator) draw(ctx context.Context, docType string) (numerator.Number, error) {
	n, err := numerator.Draw(ctx, c.numbers, docType, c.cfg.Numbering)
	if err != nil {
		return numerator.Number{}, fmt.Errorf("draw %s number: %w", docType, err)
	}
	return n, nil
}

// CreateCompleteOrder validates the payload, numbers and builds the three
// linked documents and saves them. Each document is saved on its own; if any
// save fails the whole call fails, and whatever was saved stays pending.
func (c *Creator) CreateCompleteOrder(ctx context.Context, in OrderInput) (*CompleteOrder, error) {
	if res := ValidateOrderData(in); !res.Valid {
		return nil, apperror.NewValidationList("invalid order data", res.Errors)
	}

	order, err := c.buildOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	picking, err := c.buildPicking(ctx, order, in.ScheduledDate)
	if err != nil {
		return nil, err
	}
	ddt, err := c.buildDeliveryNote(ctx, order, picking, in.Transport)
	if err != nil {
		return nil, err
	}

	order.Link(picking.LocalID)
	order.Link(ddt.LocalID)
	picking.Link(ddt.LocalID)

	var errs []error
	if err := c.orders.Save(ctx, order); err != nil {
		errs = append(errs, err)
	}
	if err := c.pickings.Save(ctx, picking); err != nil {
		errs = append(errs, err)
	}
	if err := c.ddts.Save(ctx, ddt); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logger.Error(ctx, "order chain partially saved",
			"order", order.Name, "local_id", order.LocalID, "error", errors.Join(errs...))
		return nil, errs[0]
	}

	logger.Info(ctx, "order created",
		"order", order.Name, "picking", picking.Name, "ddt", ddt.Name, "total", order.AmountTotal)
	return &CompleteOrder{Order: order, Picking: picking, DeliveryNote: ddt}, nil
}

func (c *Creator) buildOrder(ctx context.Context, in OrderInput) (*sale_order.Order, error) {
	n, err := c.draw(ctx, entity.DocTypeSaleOrder)
	if err != nil {
		return nil, err
	}
	o := sale_order.NewOrder(c.cfg.AgentID, c.cfg.AgentCode, in.PartnerID)
	o.Number = n.Value
	o.Name = n.Formatted
	o.PartnerName = in.PartnerName
	o.PartnerEmail = in.PartnerEmail
	o.PartnerPhone = in.PartnerPhone
	o.PartnerShippingID = in.PartnerShippingID
	o.ValidityDate = o.DateOrder.AddDate(0, 0, c.cfg.ValidityDays)
	o.Note = in.Note
	o.GeneralNotes = in.GeneralNotes
	o.InternalNotes = in.InternalNotes
	o.DeliveryInstructions = in.DeliveryInstructions
	o.AgentName = c.cfg.AgentName
	o.SessionID = c.cfg.SessionID
	o.RequireSignature = in.RequireSignature
	if in.PrintReceipt != nil {
		o.PrintReceipt = *in.PrintReceipt
	}
	c.setLines(o, in.Products)
	return o, nil
}

func (c *Creator) setLines(o *sale_order.Order, products []ProductInput) {
	o.Lines = o.Lines[:0]
	for _, p := range products {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Product %d", p.ID)
		}
		o.AddLine(sale_order.Line{
			ProductID:   p.ID,
			Name:        name,
			ProductCode: p.Code,
			Quantity:    p.Quantity,
			PriceUnit:   p.PriceUnit,
			Discount:    p.Discount,
			TaxID:       p.TaxID,
			Note:        p.Note,
		})
	}
	o.RecalculateTotals(c.cfg.TaxRate)
}

func (c *Creator) buildPicking(ctx context.Context, o *sale_order.Order, scheduled *time.Time) (*stock_picking.Picking, error) {
	n, err := c.draw(ctx, entity.DocTypeStockPicking)
	if err != nil {
		return nil, err
	}
	p := stock_picking.NewPicking(c.cfg.AgentID, c.cfg.AgentCode, o.LocalID, o.Name, o.PartnerID)
	p.Number = n.Value
	p.Name = n.Formatted
	p.Note = o.DeliveryInstructions
	if scheduled != nil {
		p.ScheduledDate = scheduled.UTC()
	}
	for _, l := range o.Lines {
		p.AddMove(stock_picking.Move{
			OrderLineLocalID: l.LocalID,
			ProductID:        l.ProductID,
			Name:             l.Name,
			ProductCode:      l.ProductCode,
			Planned:          l.Quantity,
			Location:         c.cfg.Location,
			LocationDest:     c.cfg.LocationDest,
		})
	}
	return p, nil
}

func (c *Creator) buildDeliveryNote(ctx context.Context, o *sale_order.Order, p *stock_picking.Picking, t delivery_note.Transport) (*delivery_note.DeliveryNote, error) {
	n, err := c.draw(ctx, entity.DocTypeDeliveryNote)
	if err != nil {
		return nil, err
	}
	d := delivery_note.NewDeliveryNote(c.cfg.AgentID, c.cfg.AgentCode, p.LocalID, o.LocalID, o.PartnerID)
	d.Number = n.Value
	d.Name = n.Formatted
	d.PartnerShippingID = o.PartnerShippingID
	d.PartnerSenderID = c.cfg.CompanyPartnerID
	d.Transport = c.cfg.Transport.Merge(t)
	if d.StartDate == nil {
		start := p.ScheduledDate
		d.StartDate = &start
	}
	return d, nil
}

// --- reads ---

// GetOrder loads an order by local ID.
func (c *Creator) GetOrder(ctx context.Context, localID string) (*sale_order.Order, error) {
	return c.orders.Get(ctx, localID)
}

// GetPicking loads a picking by local ID.
func (c *Creator) GetPicking(ctx context.Context, localID string) (*stock_picking.Picking, error) {
	return c.pickings.Get(ctx, localID)
}

// GetDeliveryNote loads a delivery note by local ID.
func (c *Creator) GetDeliveryNote(ctx context.Context, localID string) (*delivery_note.DeliveryNote, error) {
	return c.ddts.Get(ctx, localID)
}

// ListOrders returns the agent's orders, optionally only those in status.
func (c *Creator) ListOrders(ctx context.Context, status entity.SyncStatus) ([]*sale_order.Order, error) {
	if status != "" {
		return c.orders.ListByStatus(ctx, status)
	}
	return c.orders.ListByAgent(ctx, c.cfg.AgentID)
}

// PickingsByOrder follows the order -> picking link.
func (c *Creator) PickingsByOrder(ctx context.Context, orderLocalID string) ([]*stock_picking.Picking, error) {
	return c.pickings.ListByOrder(ctx, orderLocalID)
}

// DeliveryNotesByPicking follows the picking -> delivery note link.
func (c *Creator) DeliveryNotesByPicking(ctx context.Context, pickingLocalID string) ([]*delivery_note.DeliveryNote, error) {
	return c.ddts.ListByPicking(ctx, pickingLocalID)
}

// --- mutations ---

// UpdateOrder merges the changed fields; replacing products recomputes totals.
func (c *Creator) UpdateOrder(ctx context.Context, localID string, u OrderUpdate) (*sale_order.Order, error) {
	o, err := c.orders.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := o.CanModify(); err != nil {
		return nil, err
	}

	if u.Products != nil {
		res := ValidateOrderData(OrderInput{PartnerID: o.PartnerID, Products: *u.Products})
		if !res.Valid {
			return nil, apperror.NewValidationList("invalid order data", res.Errors)
		}
		c.setLines(o, *u.Products)
	}
	setString(&o.PartnerName, u.PartnerName)
	setString(&o.PartnerEmail, u.PartnerEmail)
	setString(&o.PartnerPhone, u.PartnerPhone)
	setString(&o.Note, u.Note)
	setString(&o.GeneralNotes, u.GeneralNotes)
	setString(&o.InternalNotes, u.InternalNotes)
	setString(&o.DeliveryInstructions, u.DeliveryInstructions)
	if u.PartnerShippingID != nil {
		o.PartnerShippingID = u.PartnerShippingID
	}
	if u.RequireSignature != nil {
		o.RequireSignature = *u.RequireSignature
	}
	if u.PrintReceipt != nil {
		o.PrintReceipt = *u.PrintReceipt
	}
	o.Touch()

	if err := c.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	logger.Info(ctx, "order updated", "order", o.Name, "local_id", o.LocalID)
	return o, nil
}

// UpdatePicking changes scheduling fields of a picking.
func (c *Creator) UpdatePicking(ctx context.Context, localID string, u PickingUpdate) (*stock_picking.Picking, error) {
	p, err := c.pickings.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := p.CanModify(); err != nil {
		return nil, err
	}
	if u.ScheduledDate != nil {
		p.ScheduledDate = u.ScheduledDate.UTC()
	}
	setString(&p.Note, u.Note)
	p.Touch()

	if err := c.pickings.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateDdt overlays the non-empty transport fields.
func (c *Creator) UpdateDdt(ctx context.Context, localID string, t delivery_note.Transport) (*delivery_note.DeliveryNote, error) {
	d, err := c.ddts.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := d.CanModify(); err != nil {
		return nil, err
	}
	d.Transport = d.Transport.Merge(t)
	d.Touch()

	if err := c.ddts.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ConfirmOrder moves an order from draft to confirmed.
func (c *Creator) ConfirmOrder(ctx context.Context, localID string) (*sale_order.Order, error) {
	o, err := c.orders.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := o.Confirm(); err != nil {
		return nil, err
	}
	if err := c.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	logger.Info(ctx, "order confirmed", "order", o.Name)
	return o, nil
}

// ConfirmPicking marks every move fully done.
func (c *Creator) ConfirmPicking(ctx context.Context, localID string) (*stock_picking.Picking, error) {
	p, err := c.pickings.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := p.Confirm(); err != nil {
		return nil, err
	}
	if err := c.pickings.Save(ctx, p); err != nil {
		return nil, err
	}
	logger.Info(ctx, "picking confirmed", "picking", p.Name)
	return p, nil
}

// ValidateDdt moves a delivery note to done.
func (c *Creator) ValidateDdt(ctx context.Context, localID string) (*delivery_note.DeliveryNote, error) {
	d, err := c.ddts.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := c.ddts.Save(ctx, d); err != nil {
		return nil, err
	}
	logger.Info(ctx, "delivery note validated", "ddt", d.Name)
	return d, nil
}

// DuplicateOrder runs the creation pipeline again with the customer, lines
// and notes of an existing order. The copy gets new identities and numbers.
func (c *Creator) DuplicateOrder(ctx context.Context, localID string) (*CompleteOrder, error) {
	src, err := c.orders.Get(ctx, localID)
	if err != nil {
		return nil, err
	}

	in := OrderInput{
		PartnerID:            src.PartnerID,
		PartnerName:          src.PartnerName,
		PartnerEmail:         src.PartnerEmail,
		PartnerPhone:         src.PartnerPhone,
		PartnerShippingID:    src.PartnerShippingID,
		Note:                 src.Note,
		GeneralNotes:         src.GeneralNotes,
		InternalNotes:        src.InternalNotes,
		DeliveryInstructions: src.DeliveryInstructions,
		RequireSignature:     src.RequireSignature,
		PrintReceipt:         &src.PrintReceipt,
	}
	for _, l := range src.Lines {
		in.Products = append(in.Products, ProductInput{
			ID:        l.ProductID,
			Name:      l.Name,
			Code:      l.ProductCode,
			Quantity:  l.Quantity,
			PriceUnit: l.PriceUnit,
			Discount:  l.Discount,
			TaxID:     l.TaxID,
			Note:      l.Note,
		})
	}

	out, err := c.CreateCompleteOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order duplicated", "source", src.Name, "copy", out.Order.Name)
	return out, nil
}

// DeleteCompleteOrder removes an order with its pickings and delivery notes.
// Nothing is deleted when any document of the chain is already synced.
func (c *Creator) DeleteCompleteOrder(ctx context.Context, orderLocalID string) error {
	o, err := c.orders.Get(ctx, orderLocalID)
	if err != nil {
		return err
	}
	if err := o.CanModify(); err != nil {
		return err
	}

	pickings, err := c.pickings.ListByOrder(ctx, orderLocalID)
	if err != nil {
		return err
	}
	var ddts []*delivery_note.DeliveryNote
	for _, p := range pickings {
		if err := p.CanModify(); err != nil {
			return err
		}
		list, err := c.ddts.ListByPicking(ctx, p.LocalID)
		if err != nil {
			return err
		}
		for _, d := range list {
			if err := d.CanModify(); err != nil {
				return err
			}
		}
		ddts = append(ddts, list...)
	}

	for _, d := range ddts {
		if err := c.ddts.Delete(ctx, d.LocalID); err != nil {
			return err
		}
	}
	for _, p := range pickings {
		if err := c.pickings.Delete(ctx, p.LocalID); err != nil {
			return err
		}
	}
	if err := c.orders.Delete(ctx, orderLocalID); err != nil {
		return err
	}
	logger.Info(ctx, "order deleted", "order", o.Name, "pickings", len(pickings), "ddts", len(ddts))
	return nil
}

// CleanupSynced deletes synced documents synced before cutoff.
// Pending and errored documents are always kept.
func (c *Creator) CleanupSynced(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0

	orders, err := c.orders.ListByStatus(ctx, entity.SyncSynced)
	if err != nil {
		return removed, err
	}
	for _, o := range orders {
		if syncedBefore(&o.Document, cutoff) {
			if err := c.orders.Delete(ctx, o.LocalID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	pickings, err := c.pickings.ListByStatus(ctx, entity.SyncSynced)
	if err != nil {
		return removed, err
	}
	for _, p := range pickings {
		if syncedBefore(&p.Document, cutoff) {
			if err := c.pickings.Delete(ctx, p.LocalID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	ddts, err := c.ddts.ListByStatus(ctx, entity.SyncSynced)
	if err != nil {
		return removed, err
	}
	for _, d := range ddts {
		if syncedBefore(&d.Document, cutoff) {
			if err := c.ddts.Delete(ctx, d.LocalID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Info(ctx, "synced documents cleaned up", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func syncedBefore(d *entity.Document, cutoff time.Time) bool {
	return d.SyncedAt != nil && d.SyncedAt.Before(cutoff)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
