// Package backup reads and writes zstd-compressed JSON snapshots.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// Snapshot is the content of an agent backup. Only counters are restored
// on import; documents are kept for inspection.
type Snapshot struct {
	Format        int                           `json:"format"`
	ExportedAt    time.Time                     `json:"exported_at"`
	Counters      counter.Backup                `json:"counters"`
	Orders        []*sale_order.Order           `json:"orders,omitempty"`
	Pickings      []*stock_picking.Picking      `json:"pickings,omitempty"`
	DeliveryNotes []*delivery_note.DeliveryNote `json:"ddts,omitempty"`
}

// Write encodes v as JSON through a zstd stream.
func Write(w io.Writer, v any) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(v); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush backup: %w", err)
	}
	return nil
}

// Read decodes a stream produced by Write into v.
func Read(r io.Reader, v any) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(v); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot and checks its format.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := Read(r, &s); err != nil {
		return s, err
	}
	if s.Format != FormatVersion {
		return s, fmt.Errorf("unsupported backup format %d", s.Format)
	}
	return s, nil
}
