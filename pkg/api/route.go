package api

import (
	"github.com/gin-gonic/gin"
)

type handlerFunc func(c *gin.Context) (*Response, Error)

func handleRequest(hdlr handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := hdlr(c)
		sendResponse(c, resp, err)
	}
}

// SetupRoute binds read-only analytics API to the router group.
func SetupRoute(r *gin.RouterGroup, h *Handler) {
	r.GET("/stats", handleRequest(h.GetStats))
	r.GET("/metrics/:metric", handleRequest(h.GetMetric))
	r.GET("/files", handleRequest(h.GetFiles))
	r.GET("/entries", handleRequest(h.GetEntries))
}

// NewEngine creates gin engine with API routes under /api/v1
func NewEngine(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	SetupRoute(engine.Group("/api/v1"), h)
	return engine
}
