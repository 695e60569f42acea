package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/enricher"
)

// Archiver buffers event rows and flushes them to ClickHouse in batches on
// size or time.
type Archiver struct {
	ch        *ClickHouse
	batchSize int

	mu     sync.Mutex
	buffer []EventRow

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewArchiver(ch *ClickHouse, batchSize int, flushInterval time.Duration) *Archiver {
	a := &Archiver{
		ch:        ch,
		batchSize: batchSize,
		buffer:    make([]EventRow, 0, batchSize),
		done:      make(chan struct{}),
	}

	a.ticker = time.NewTicker(flushInterval)
	go a.flushLoop()

	return a
}

// Archive queues one event for the next batch.
func (a *Archiver) Archive(ev *enricher.Event) {
	a.mu.Lock()
	a.buffer = append(a.buffer, RowFromEvent(ev))
	shouldFlush := len(a.buffer) >= a.batchSize
	a.mu.Unlock()

	if shouldFlush {
		a.Flush()
	}
}

func (a *Archiver) flushLoop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.ticker.C:
			a.Flush()
		}
	}
}

// Flush writes all buffered rows to ClickHouse.
func (a *Archiver) Flush() {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return
	}
	rows := a.buffer
	a.buffer = make([]EventRow, 0, a.batchSize)
	a.mu.Unlock()

	start := time.Now()
	if err := a.ch.InsertEvents(context.Background(), rows); err != nil {
		log.Error().Err(err).Int("count", len(rows)).Msg("Failed to archive events")
		return
	}
	log.Debug().Int("count", len(rows)).Dur("duration", time.Since(start)).Msg("Archived events to ClickHouse")
}

// Stop halts the flush loop and drains the buffer.
func (a *Archiver) Stop() {
	a.once.Do(func() {
		a.ticker.Stop()
		close(a.done)
		a.Flush()
	})
}
