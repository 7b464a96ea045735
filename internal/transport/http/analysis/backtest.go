package analysishttp

import (
	"net/http"
	"strings"

	"tradecrew/internal/backtest"
	"tradecrew/internal/calendar"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleRunStart(c *gin.Context) {
	var req struct {
		Symbol    string   `json:"symbol" binding:"required"`
		Market    string   `json:"market"`
		StartDate string   `json:"start_date" binding:"required"`
		EndDate   string   `json:"end_date" binding:"required"`
		Analysts  []string `json:"analysts"`
		Model     string   `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	market := strings.TrimSpace(req.Market)
	if market == "" {
		market = s.cfg.DefaultMarket
	}
	params := backtest.Request{
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Market:    calendar.Market(market),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Analysts:  req.Analysts,
		Model:     req.Model,
	}
	if s.cfg.Models != nil {
		params.Model, params.Provider = s.cfg.Models(req.Model)
	}
	run, err := s.cfg.Backtests.Submit(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.cfg.Backtests.RunsSnapshot()})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, ok := s.cfg.Backtests.RunSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}
