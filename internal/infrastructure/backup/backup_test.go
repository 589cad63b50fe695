package backup

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/documents/sale_order"
)

func TestSnapshotSurvivesCompression(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := Snapshot{
		Format:     FormatVersion,
		ExportedAt: at,
		Counters: counter.Backup{
			AgentID:    7,
			AgentCode:  "AG007",
			ExportedAt: at,
			Counters: []counter.Counter{
				{Key: "sale_order_7", DocType: "sale_order", AgentID: 7, Value: 12},
			},
		},
		Orders: []*sale_order.Order{sale_order.NewOrder(7, "AG007", 42)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(12), out.Counters.Counters[0].Value)
	assert.Equal(t, "AG007", out.Counters.AgentCode)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, in.Orders[0].LocalID, out.Orders[0].LocalID)
}

func TestReadRejectsGarbage(t *testing.T) {
	var v map[string]any
	assert.Error(t, Read(strings.NewReader("not zstd"), &v))
}

func TestReadSnapshotChecksFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Snapshot{Format: 99}))
	_, err := ReadSnapshot(&buf)
	assert.ErrorContains(t, err, "unsupported backup format 99")
}
