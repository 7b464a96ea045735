package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradecrew/internal/calendar"
	"tradecrew/internal/logger"

	_ "modernc.org/sqlite"
)

// DailyTimeframe 是价格库使用的日线文件名。
const DailyTimeframe = "1d"

// SQLiteSource 从本地日线库读取收盘价：{root}/{market}/{SYMBOL}/1d.db，表 candles。
// 库由外部采集程序写入，这里只读。
type SQLiteSource struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewSQLiteSource(root string) (*SQLiteSource, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("pricing data root is required")
	}
	return &SQLiteSource{root: root, dbs: make(map[string]*sql.DB)}, nil
}

// Path 返回某标的日线库路径。
func (s *SQLiteSource) Path(market calendar.Market, symbol string) string {
	return filepath.Join(s.root, string(market), strings.ToUpper(strings.TrimSpace(symbol)), DailyTimeframe+".db")
}

// Closes 读取 [start, end] 内的收盘价，日期按市场时区换算。库不存在时返回空序列。
func (s *SQLiteSource) Closes(ctx context.Context, market calendar.Market, symbol string, start, end time.Time) (Series, error) {
	path := s.Path(market, symbol)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warnf("[pricing] %s %s 无本地日线数据: %s", market, symbol, path)
		return Series{}, nil
	}
	db, err := s.db(path)
	if err != nil {
		return Series{}, err
	}
	loc := market.Location()
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	rows, err := db.QueryContext(ctx,
		`SELECT open_time, close FROM candles WHERE open_time >= ? AND open_time < ? ORDER BY open_time ASC`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return Series{}, fmt.Errorf("query closes %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			openTime int64
			closePx  float64
		)
		if err := rows.Scan(&openTime, &closePx); err != nil {
			return Series{}, err
		}
		points = append(points, Point{Date: calendar.Date(time.UnixMilli(openTime).In(loc)), Close: closePx})
	}
	if err := rows.Err(); err != nil {
		return Series{}, err
	}
	return NewSeries(points), nil
}

func (s *SQLiteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *SQLiteSource) db(path string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[path]; ok {
		return db, nil
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.dbs[path] = db
	return db, nil
}
