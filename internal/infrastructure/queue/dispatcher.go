package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/api/metrics"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes verified webhook updates to a fixed set of workers
// using consistent hashing on the sender id, guaranteeing per-sender
// update ordering.
type Dispatcher struct {
	workers []chan ports.BotUpdate
	handler ports.UpdateHandler
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handler ports.UpdateHandler, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.BotUpdate, numWorkers),
		handler: handler,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.BotUpdate, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an update to the worker responsible for its sender.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(update ports.BotUpdate) {
	idx := d.shardIndex(update.SenderID)
	d.workers[idx] <- update
	metrics.UpdatesQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps a sender id deterministically to a worker index.
func (d *Dispatcher) shardIndex(senderID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(senderID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.BotUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if err := d.handler.Handle(ctx, update); err != nil {
				d.log.Error().Err(err).
					Int64("update_id", update.UpdateID).
					Int("worker_id", id).
					Msg("update handling failed")
			}
			metrics.UpdatesQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
		}
	}
}
