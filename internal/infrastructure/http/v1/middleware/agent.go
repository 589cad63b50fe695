package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "raccolta/internal/core/context"
	"raccolta/pkg/logger"
)

// HeaderDeviceID identifies the device of the calling UI, when it has one.
const HeaderDeviceID = "X-Device-ID"

// AgentContext binds every request to the agent this process serves and
// attaches a logger enriched with agent and trace fields.
//
// Must run after Trace so the logger picks up the request ids.
func AgentContext(agentID int64, agentCode string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := appctx.NewAgentContext(agentID, c.GetHeader(HeaderDeviceID))
		if agentCode != "" {
			agent.AgentCode = agentCode
		}
		ctx := appctx.WithAgent(c.Request.Context(), agent)
		ctx = logger.WithLogger(ctx, log.WithContext(ctx))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
