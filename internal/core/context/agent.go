// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"fmt"
)

// AgentContext identifies the field agent a device is bound to.
type AgentContext struct {
	AgentID   int64
	AgentCode string
	DeviceID  string
}

type agentContextKey struct{}

// AgentCode renders the display code of an agent: "AG" followed by the id
// padded to three digits.
func AgentCode(agentID int64) string {
	return fmt.Sprintf("AG%03d", agentID)
}

// NewAgentContext builds an AgentContext with the derived display code.
func NewAgentContext(agentID int64, deviceID string) *AgentContext {
	return &AgentContext{
		AgentID:   agentID,
		AgentCode: AgentCode(agentID),
		DeviceID:  deviceID,
	}
}

// WithAgent adds AgentContext to context.
func WithAgent(ctx context.Context, agent *AgentContext) context.Context {
	return context.WithValue(ctx, agentContextKey{}, agent)
}

// GetAgent returns AgentContext from context.
func GetAgent(ctx context.Context) *AgentContext {
	if v, ok := ctx.Value(agentContextKey{}).(*AgentContext); ok {
		return v
	}
	return nil
}

// GetAgentID returns the agent id from context or zero.
func GetAgentID(ctx context.Context) int64 {
	if a := GetAgent(ctx); a != nil {
		return a.AgentID
	}
	return 0
}
