package stream

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultHeartbeat = 15 * time.Second
	DefaultPoll      = time.Second
	DefaultBuffer    = 64
)

// Producer 执行一次阻塞计算，通过 emit 交出中间结果。
type Producer[T any] func(ctx context.Context, emit func(T)) error

// Adapter 把阻塞调用桥接为带心跳、可取消的事件流。
// 生产者在独立 goroutine 中运行，结果经有界通道送到消费者；
// 消费者负责把数据转为事件、空闲时补心跳、并保证恰好一个终止事件。
type Adapter[T any] struct {
	Heartbeat time.Duration
	Poll      time.Duration
	Buffer    int
	// Classify 为空时使用 ClassifyError。
	Classify func(error) Kind
	// OnData 把一个中间结果转为零或多个事件。
	OnData func(T) []Event
	// OnDone 在生产者成功返回后生成终止事件。
	OnDone func() Event
	// StartContent 是首个心跳的内容。
	StartContent string
}

type msgKind int

const (
	msgData msgKind = iota
	msgDone
	msgError
)

type message[T any] struct {
	kind    msgKind
	payload T
	err     error
}

// Stream 启动生产者并返回事件通道；终止事件之后或 ctx 取消后通道关闭。
// ctx 取消时生产者不会被打断，它继续在后台跑完，输出被丢弃。
func (a Adapter[T]) Stream(ctx context.Context, produce Producer[T]) <-chan Event {
	a = a.withDefaults()
	msgs := make(chan message[T], a.Buffer)
	out := make(chan Event)
	go runProducer(ctx, context.WithoutCancel(ctx), produce, msgs)
	go a.consume(ctx, msgs, out)
	return out
}

func (a Adapter[T]) withDefaults() Adapter[T] {
	if a.Heartbeat <= 0 {
		a.Heartbeat = DefaultHeartbeat
	}
	if a.Poll <= 0 {
		a.Poll = DefaultPoll
	}
	if a.Buffer <= 0 {
		a.Buffer = DefaultBuffer
	}
	if a.Classify == nil {
		a.Classify = ClassifyError
	}
	if a.OnDone == nil {
		a.OnDone = func() Event { return Complete("") }
	}
	return a
}

func runProducer[T any](consumer, work context.Context, produce Producer[T], msgs chan<- message[T]) {
	send := func(m message[T]) {
		select {
		case msgs <- m:
		case <-consumer.Done():
		}
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pipeline panic: %v", r)
			}
		}()
		return produce(work, func(v T) {
			send(message[T]{kind: msgData, payload: v})
		})
	}()
	if err != nil {
		send(message[T]{kind: msgError, err: err})
		return
	}
	send(message[T]{kind: msgDone})
}

func (a Adapter[T]) consume(ctx context.Context, msgs <-chan message[T], out chan<- Event) {
	defer close(out)
	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	if !emit(Heartbeat(a.StartContent)) {
		return
	}
	last := time.Now()
	ticker := time.NewTicker(a.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-msgs:
			switch m.kind {
			case msgData:
				if a.OnData != nil {
					for _, ev := range a.OnData(m.payload) {
						if !emit(ev) {
							return
						}
					}
				}
				last = time.Now()
			case msgDone:
				emit(a.OnDone())
				return
			case msgError:
				emit(FailureEvent(m.err, a.Classify))
				return
			}
		case now := <-ticker.C:
			if now.Sub(last) >= a.Heartbeat {
				if !emit(Heartbeat("")) {
					return
				}
				last = time.Now()
			}
		}
	}
}
