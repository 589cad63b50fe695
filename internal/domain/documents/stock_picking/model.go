// Package stock_picking provides the warehouse release document of an order.
package stock_picking

import (
	"strconv"
	"time"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/id"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
)

// Picking and move states.
const (
	StateDraft = "draft"
	StateDone  = "done"
)

// Picking lists the stock movements needed to fulfil one order.
type Picking struct {
	entity.Document

	Origin        string     `json:"origin"`
	OrderLocalID  string     `json:"order_local_id"`
	PartnerID     int64      `json:"partner_id"`
	State         string     `json:"state"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	DateDone      *time.Time `json:"date_done,omitempty"`
	Note          string     `json:"note,omitempty"`

	Moves []Move `json:"move_lines"`
}

// Move is one product movement from stock to the customer.
type Move struct {
	LocalID          string         `json:"local_id"`
	OrderLineLocalID string         `json:"order_line_local_id"`
	Sequence         int            `json:"sequence"`
	ProductID        int64          `json:"product_id"`
	Name             string         `json:"name"`
	ProductCode      string         `json:"product_code,omitempty"`
	Planned          types.Quantity `json:"product_uom_qty"`
	Done             types.Quantity `json:"quantity_done"`
	State            string         `json:"state"`
	Location         string         `json:"location_id"`
	LocationDest     string         `json:"location_dest_id"`
}

// NewPicking creates a draft picking for an order.
func NewPicking(agentID int64, agentCode string, orderLocalID, origin string, partnerID int64) *Picking {
	doc := entity.NewDocument(entity.DocTypeStockPicking, id.PrefixPicking, agentID, agentCode)
	return &Picking{
		Document:      doc,
		Origin:        origin,
		OrderLocalID:  orderLocalID,
		PartnerID:     partnerID,
		State:         StateDraft,
		ScheduledDate: doc.CreatedAt,
		Moves:         make([]Move, 0),
	}
}

// AddMove appends a draft move with nothing done yet.
func (p *Picking) AddMove(m Move) {
	m.Sequence = len(p.Moves) + 1
	if m.LocalID == "" {
		m.LocalID = id.NewLocal(id.PrefixMove)
	}
	m.Done = 0
	m.State = StateDraft
	p.Moves = append(p.Moves, m)
}

// Confirm marks every move fully done. Partial fulfilment is not modelled.
func (p *Picking) Confirm() error {
	if err := p.CanModify(); err != nil {
		return err
	}
	if p.State == StateDone {
		return apperror.NewInvalidState(p.DocType, p.State, StateDone)
	}
	for i := range p.Moves {
		p.Moves[i].Done = p.Moves[i].Planned
		p.Moves[i].State = StateDone
	}
	now := time.Now().UTC()
	p.State = StateDone
	p.DateDone = &now
	p.Touch()
	return nil
}

// StoreKey implements domain.Storable.
func (p *Picking) StoreKey() string { return p.LocalID }

// StoreIndexes implements domain.Storable.
func (p *Picking) StoreIndexes() map[string]string {
	return map[string]string{
		domain.IndexSyncStatus:   string(p.SyncStatus),
		domain.IndexOrderLocalID: p.OrderLocalID,
		domain.IndexAgentID:      strconv.FormatInt(p.AgentID, 10),
	}
}
