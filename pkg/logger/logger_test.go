package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "raccolta/internal/core/context"
)

func TestFromContextCarriesAgentAndTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), base.WithComponent("counter"))
	ctx = appctx.WithAgent(ctx, appctx.NewAgentContext(7, "dev"))
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t1", RequestID: "r1"})

	Info(ctx, "number generated", "counter_key", "sale_order_7")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "counter", fields["component"])
	assert.Equal(t, "t1", fields["trace_id"])
	assert.Equal(t, int64(7), fields["agent_id"])
	assert.Equal(t, "AG007", fields["agent_code"])
	assert.Equal(t, "sale_order_7", fields["counter_key"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "nonsense", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}
