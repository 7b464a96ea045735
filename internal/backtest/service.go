package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradecrew/internal/logger"

	"github.com/google/uuid"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// Progress 是运行中任务的进度。
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Date    string `json:"date,omitempty"`
}

// Run 表示一次异步回测任务，只保存在内存中。
type Run struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Request   Request   `json:"request"`
	Progress  Progress  `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Run) copy() Run {
	out := *r
	if r.Result != nil {
		res := *r.Result
		res.Trades = append([]TradeRecord(nil), r.Result.Trades...)
		out.Result = &res
	}
	return out
}

// ServiceConfig 配置回测任务服务。
type ServiceConfig struct {
	Engine        *Engine
	MaxConcurrent int
}

// Service 管理异步回测任务：提交后立即返回，回放在后台进行。
type Service struct {
	engine *Engine
	sem    chan struct{}

	mu   sync.RWMutex
	runs map[string]*Run

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("backtest engine is required")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		engine:  cfg.Engine,
		sem:     make(chan struct{}, maxConcurrent),
		runs:    make(map[string]*Run),
		baseCtx: context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// Submit 校验请求并创建任务。
func (s *Service) Submit(req Request) (Run, error) {
	if err := req.validate(); err != nil {
		return Run{}, err
	}
	now := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	logger.Infof("[backtest] run %s 提交：%s %s ~ %s", run.ID, req.Symbol, req.StartDate, req.EndDate)

	go s.execute(run.ID, req)
	return run.copy(), nil
}

func (s *Service) execute(id string, req Request) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.setStatus(id, RunStatusFailed, "service stopped")
		return
	}
	defer func() { <-s.sem }()

	s.setStatus(id, RunStatusRunning, "")
	res, err := s.engine.Run(s.ctx(), req, Hooks{
		OnProgress: func(current, total int, date string) {
			s.update(id, func(r *Run) {
				r.Progress = Progress{Current: current, Total: total, Date: date}
			})
		},
	})
	if err != nil {
		logger.Warnf("[backtest] run %s 失败: %v", id, err)
		s.setStatus(id, RunStatusFailed, err.Error())
		return
	}
	s.update(id, func(r *Run) {
		r.Status = RunStatusDone
		r.Result = &res
	})
	logger.Infof("[backtest] run %s 完成，交易记录=%d", id, len(res.Trades))
}

func (s *Service) setStatus(id, status, message string) {
	s.update(id, func(r *Run) {
		r.Status = status
		r.Message = message
	})
}

func (s *Service) update(id string, fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok && fn != nil {
		fn(run)
		run.UpdatedAt = time.Now()
	}
}

// RunSnapshot 返回任务副本。
func (s *Service) RunSnapshot(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.copy(), true
}

// RunsSnapshot 返回全部任务（不含结果明细），按创建时间倒序。
func (s *Service) RunsSnapshot() []Run {
	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		cp.Result = nil
		out = append(out, cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
