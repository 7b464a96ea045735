package pricing

import (
	"sort"
	"time"

	"tradecrew/internal/calendar"
)

// Point 是某个自然日的收盘价。
type Point struct {
	Date  time.Time
	Close float64
}

// Series 是按日期升序、日期唯一的收盘价序列。
type Series struct {
	points []Point
}

// NewSeries 规范化日期并排序；同一日期以后出现者为准。
func NewSeries(points []Point) Series {
	byDay := make(map[time.Time]float64, len(points))
	for _, p := range points {
		byDay[calendar.Date(p.Date)] = p.Close
	}
	out := make([]Point, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, Point{Date: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return Series{points: out}
}

func (s Series) Len() int    { return len(s.points) }
func (s Series) Empty() bool { return len(s.points) == 0 }

// Points 返回序列副本。
func (s Series) Points() []Point {
	return append([]Point(nil), s.points...)
}

// CloseOn 返回 day 当日收盘价；当日缺失时回退到最近的更早日期。序列中没有更早数据时返回 false。
func (s Series) CloseOn(day time.Time) (float64, bool) {
	day = calendar.Date(day)
	idx := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(day) })
	if idx == 0 {
		return 0, false
	}
	return s.points[idx-1].Close, true
}
