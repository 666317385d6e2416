package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBuffer    = 2048
	defaultBatchSize = 500
	defaultBatchWait = 250 * time.Millisecond
	defaultSinkWait  = 10 * time.Second
	dropWarnEvery    = 5 * time.Second
)

// Config tunes Hub buffering and batching. Zero values take the defaults.
type Config struct {
	// Buffer is the internal channel capacity.
	Buffer int
	// BatchSize flushes once this many events queue.
	BatchSize int
	// BatchWait flushes after this duration even when the batch is small.
	BatchWait time.Duration
	// SinkTimeout bounds each sink call during a flush.
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

// Hub batches events and fans them out to its sinks from a single background
// goroutine. Emit never blocks; under backpressure events are dropped and
// counted.
type Hub struct {
	cfg    Config
	sinks  []Sink
	ch     chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	dropped      atomic.Int64
	lastDropWarn atomic.Int64
	closing      atomic.Bool
	closeOnce    sync.Once
}

// NewHub starts a Hub over the given sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = defaultBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkWait
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		ch:     make(chan Event, cfg.Buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
	go h.loop()
	return h
}

// Emit enqueues evt without blocking. Invalid events are discarded; a full
// buffer drops the event and logs a rate-limited warning.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closing.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.ch <- evt:
	default:
		h.noteDrop()
	}
}

func (h *Hub) noteDrop() {
	h.dropped.Add(1)
	now := time.Now().UnixNano()
	last := h.lastDropWarn.Load()
	if now-last < dropWarnEvery.Nanoseconds() {
		return
	}
	if h.lastDropWarn.CompareAndSwap(last, now) {
		h.logger.Warn("progress events dropped under backpressure",
			zap.Int64("dropped", h.dropped.Swap(0)))
	}
}

// Close flushes buffered events, closes the sinks, and waits for the
// background goroutine. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closing.Store(true)
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close: %w", ctx.Err())
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	batch := make([]Event, 0, h.cfg.BatchSize)
	ticker := time.NewTicker(h.cfg.BatchWait)
	defer ticker.Stop()

	for {
		select {
		case evt := <-h.ch:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.BatchSize {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-h.stop:
			// Drain whatever made it into the channel before shutdown.
			for {
				select {
				case evt := <-h.ch:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						h.flush(batch)
					}
					h.closeSinks()
					return
				}
			}
		}
	}
}

func (h *Hub) flush(batch []Event) {
	out := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
		cancel()
	}
}
