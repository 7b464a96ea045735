package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradecrew/internal/logger"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const maxLineBytes = 16 << 20

// ClientConfig 描述远端流水线 worker 的访问方式。
type ClientConfig struct {
	BaseURL string
	// Timeout 为 0 表示不设上限；流水线运行可能持续数十分钟。
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 通过 NDJSON 与远端流水线 worker 通讯。每个实例拥有独立会话，不可跨请求复用。
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	session string
}

// NewClient 创建一个新的会话客户端。
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("pipeline base url is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: base,
		timeout: cfg.Timeout,
		http:    hc,
		session: uuid.NewString(),
	}, nil
}

// NewFactory 返回按请求构建新会话的工厂。
func NewFactory(cfg ClientConfig) Factory {
	return func() (Pipeline, error) {
		return NewClient(cfg)
	}
}

// Session 返回本实例的会话 ID。
func (c *Client) Session() string { return c.session }

type runPayload struct {
	SessionID string `json:"session_id"`
	Request
}

// Run 阻塞直到远端运行结束；每一行 state 都会回调 onSnapshot。
func (c *Client) Run(ctx context.Context, req Request, onSnapshot func(Snapshot)) (Snapshot, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.post(ctx, "/run", runPayload{SessionID: c.session, Request: req})
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	var (
		last Snapshot
		seen bool
	)
	err = scanLines(resp.Body, func(line []byte) error {
		if msg := gjson.GetBytes(line, "error"); msg.Exists() {
			return errors.New(msg.String())
		}
		state := gjson.GetBytes(line, "state")
		if !state.IsObject() {
			return nil
		}
		last = snapshotFromResult(state)
		seen = true
		if onSnapshot != nil {
			onSnapshot(last)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !seen {
		return Snapshot{}, errors.New("pipeline run produced no state")
	}
	return last, nil
}

// StreamTokens 启动逐 token 运行，返回的通道在源结束或失败后关闭。
func (c *Client) StreamTokens(ctx context.Context, req Request) (<-chan TokenEvent, error) {
	ctx, cancel := c.withTimeout(ctx)
	resp, err := c.post(ctx, "/tokens", runPayload{SessionID: c.session, Request: req})
	if err != nil {
		cancel()
		return nil, err
	}
	out := make(chan TokenEvent)
	go func() {
		defer close(out)
		defer cancel()
		defer resp.Body.Close()
		send := func(ev TokenEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		err := scanLines(resp.Body, func(line []byte) error {
			if msg := gjson.GetBytes(line, "error"); msg.Exists() {
				return errors.New(msg.String())
			}
			ev := TokenEvent{
				Node:  gjson.GetBytes(line, "node").String(),
				Token: gjson.GetBytes(line, "token").String(),
			}
			if !send(ev) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			send(TokenEvent{Err: err})
		}
	}()
	return out, nil
}

// Reflect 将单日收益回灌给会话记忆。
func (c *Client) Reflect(ctx context.Context, req Request, returnPct float64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	payload := struct {
		SessionID string  `json:"session_id"`
		Ticker    string  `json:"ticker"`
		Date      string  `json:"date"`
		ReturnPct float64 `json:"return_pct"`
	}{c.session, req.Ticker, req.Date, returnPct}
	resp, err := c.post(ctx, "/reflect", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debugf("[pipeline] session %s 反思完成 %s %s return=%.4f", c.session, req.Ticker, req.Date, returnPct)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pipeline %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func scanLines(r io.Reader, fn func([]byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return fmt.Errorf("malformed pipeline line: %.80q", line)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
