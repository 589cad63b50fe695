package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCode(t *testing.T) {
	assert.Equal(t, "AG007", AgentCode(7))
	assert.Equal(t, "AG123", AgentCode(123))
	assert.Equal(t, "AG1234", AgentCode(1234))
}

func TestAgentRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetAgent(ctx))
	assert.Zero(t, GetAgentID(ctx))

	ctx = WithAgent(ctx, NewAgentContext(7, "tablet-1"))
	agent := GetAgent(ctx)
	require.NotNil(t, agent)
	assert.Equal(t, "AG007", agent.AgentCode)
	assert.Equal(t, int64(7), GetAgentID(ctx))
}

func TestEnsureTraceKeepsExisting(t *testing.T) {
	ctx := EnsureTrace(context.Background())
	first := GetTrace(ctx)
	require.NotNil(t, first)
	assert.Len(t, first.SpanID, 16)

	again := EnsureTrace(ctx)
	assert.Same(t, first, GetTrace(again))
	assert.Equal(t, first.RequestID, GetRequestID(again))
}
