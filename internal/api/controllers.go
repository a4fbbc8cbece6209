package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meanrev-bot/pkg/db"
)

const (
	tradeLimit = 50
	logLimit   = 100
)

// status reports liveness plus the run flag. Loop-internal failures are
// visible only through /logs; this endpoint never reflects them as errors.
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "Online",
		"bot_active": s.Loop.Active(),
		"portfolio":  s.Portfolio,
	})
}

func (s *Server) start(c *gin.Context) {
	s.Loop.Start()
	c.JSON(http.StatusOK, gin.H{"message": "Bot started", "bot_active": true})
}

func (s *Server) stop(c *gin.Context) {
	s.Loop.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Bot stopped", "bot_active": false})
}

func (s *Server) trades(c *gin.Context) {
	trades, err := s.DB.RecentTrades(c.Request.Context(), tradeLimit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if trades == nil {
		trades = []db.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) logs(c *gin.Context) {
	logs, err := s.DB.RecentLogs(c.Request.Context(), logLimit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load logs")
		return
	}
	if logs == nil {
		logs = []db.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

// stats counts SELL rows: each one is a completed round-trip.
func (s *Server) stats(c *gin.Context) {
	n, err := s.DB.CountSells(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_trades": n})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
