package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// handleHealth returns server health status.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gridwalk-server",
		"version": version,
		"uptime":  time.Since(startTime).String(),
		"players": s.hub.ActiveCount(),
	})
}
