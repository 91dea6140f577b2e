package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/core/ports"
)

type recordingHandler struct {
	mu       sync.Mutex
	bySender map[int64][]int64
	total    int
	done     chan struct{}
	expect   int
}

func newRecordingHandler(expect int) *recordingHandler {
	return &recordingHandler{
		bySender: make(map[int64][]int64),
		done:     make(chan struct{}),
		expect:   expect,
	}
}

func (h *recordingHandler) Handle(_ context.Context, update ports.BotUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bySender[update.SenderID] = append(h.bySender[update.SenderID], update.UpdateID)
	h.total++
	if h.total == h.expect {
		close(h.done)
	}
	return nil
}

func TestDispatcher_PerSenderOrdering(t *testing.T) {
	const senders = 5
	const perSender = 50

	handler := newRecordingHandler(senders * perSender)
	d := NewDispatcher(4, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Interleave updates across senders; ids per sender ascend.
	var id int64
	for i := 0; i < perSender; i++ {
		for s := int64(1); s <= senders; s++ {
			id++
			d.Enqueue(ports.BotUpdate{UpdateID: id, SenderID: s})
		}
	}

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for updates")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	for sender, ids := range handler.bySender {
		if len(ids) != perSender {
			t.Fatalf("sender %d: got %d updates, want %d", sender, len(ids), perSender)
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("sender %d: out of order at %d: %v", sender, i, ids)
			}
		}
	}
}

func TestDispatcher_ShardIsStable(t *testing.T) {
	d := NewDispatcher(8, newRecordingHandler(0), zerolog.Nop())

	for _, sender := range []int64{1, 42, 1<<40 + 7} {
		first := d.shardIndex(sender)
		for i := 0; i < 10; i++ {
			if got := d.shardIndex(sender); got != first {
				t.Fatalf("sender %d: shard moved from %d to %d", sender, first, got)
			}
		}
	}
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	handler := newRecordingHandler(1)
	d := NewDispatcher(1, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue(ports.BotUpdate{UpdateID: 1, SenderID: 1})
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("update not handled")
	}

	cancel()
	// After cancellation enqueued updates may sit in the buffer, but no
	// new handling happens once the worker has observed ctx.Done.
}
