package analysishttp

import (
	"context"
	"net/http"
	"strings"

	"tradecrew/internal/calendar"
	"tradecrew/internal/logger"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

type analyzeRequest struct {
	Ticker   string   `json:"ticker" binding:"required"`
	Date     string   `json:"date" binding:"required"`
	Market   string   `json:"market"`
	Analysts []string `json:"analysts"`
	Model    string   `json:"model"`
}

func (s *Server) bindAnalyze(c *gin.Context) (pipeline.Request, bool) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return pipeline.Request{}, false
	}
	if _, err := calendar.ParseDate(body.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return pipeline.Request{}, false
	}
	market := strings.TrimSpace(body.Market)
	if market == "" {
		market = s.cfg.DefaultMarket
	}
	m, err := calendar.ParseMarket(market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return pipeline.Request{}, false
	}
	req := pipeline.Request{
		Ticker:   strings.ToUpper(strings.TrimSpace(body.Ticker)),
		Date:     body.Date,
		Market:   string(m),
		Analysts: body.Analysts,
		Model:    body.Model,
	}
	if len(req.Analysts) == 0 {
		req.Analysts = append([]string(nil), s.cfg.DefaultAnalysts...)
	}
	if s.cfg.Models != nil {
		req.Model, req.Provider = s.cfg.Models(body.Model)
	}
	return req, true
}

// handleAnalyze 以快照模式推送各阶段完成的内容。
func (s *Server) handleAnalyze(c *gin.Context) {
	req, ok := s.bindAnalyze(c)
	if !ok {
		return
	}
	s.serveStream(c, req, stream.FormatSnapshot, func(ctx context.Context) <-chan stream.Event {
		p, err := s.cfg.Pipelines()
		if err != nil {
			return stream.Fail(err)
		}
		return stream.SnapshotStream(ctx, p, req, s.cfg.Stream)
	})
}

// handleAnalyzeStream 以 token 模式逐字推送。
func (s *Server) handleAnalyzeStream(c *gin.Context) {
	req, ok := s.bindAnalyze(c)
	if !ok {
		return
	}
	s.serveStream(c, req, stream.FormatToken, func(ctx context.Context) <-chan stream.Event {
		p, err := s.cfg.Pipelines()
		if err != nil {
			return stream.Fail(err)
		}
		tokens, err := p.StreamTokens(ctx, req)
		if err != nil {
			return stream.Fail(err)
		}
		return stream.Reconstruct(ctx, tokens, s.cfg.Stream)
	})
}

func (s *Server) serveStream(c *gin.Context, req pipeline.Request, format stream.Format, open func(context.Context) <-chan stream.Event) {
	requestID := uuid.NewString()
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	header := c.Writer.Header()
	header.Set("Content-Type", stream.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	header.Set(headerRequestID, requestID)
	c.Status(http.StatusOK)

	logger.Infof("[analysis] %s 开始分析 %s %s (%s, model=%s)", requestID, req.Ticker, req.Date, req.Market, req.Model)
	enc := stream.NewEncoder(c.Writer, format)
	for ev := range open(ctx) {
		if ev.Kind == stream.KindStageEnd {
			logger.LogStageOutput(requestID, ev.StageName(), ev.Text())
		}
		if err := enc.Encode(ev); err != nil {
			logger.Warnf("[analysis] %s 写出失败: %v", requestID, err)
			return
		}
		c.Writer.Flush()
		switch {
		case ev.Kind == stream.KindComplete:
			logger.Infof("[analysis] %s 完成，决策=%s", requestID, ev.Text())
		case ev.Kind.Failure():
			logger.Warnf("[analysis] %s 失败 (%s): %s", requestID, ev.Kind, ev.Text())
		}
	}
}
