package annot

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"watershed/api/internal/replstore"
	"watershed/api/internal/util"
)

// DefaultTaskStatus is the status every new task starts with.
const DefaultTaskStatus = "Open"

// Writer issues the fire-and-forget annotation writes. No acknowledgment
// is awaited and nothing retries; the store's own replication is
// at-least-once.
type Writer struct {
	store replstore.Store
	clock clockwork.Clock
}

// NewWriter creates a Writer. The clock mints the client-side timestamps
// that double as message dedup keys.
func NewWriter(store replstore.Store, clock clockwork.Clock) *Writer {
	return &Writer{store: store, clock: clock}
}

// SendMessage appends a message to a violation thread and returns it for
// optimistic rendering. The write itself happens in the background.
func (w *Writer) SendMessage(ctx context.Context, violationID, text, sender string) Message {
	if sender == "" {
		sender = "User"
	}
	msg := Message{
		Text:      text,
		Timestamp: w.clock.Now().UTC().Format(time.RFC3339Nano),
		Sender:    sender,
	}
	w.fire(ctx, func(ctx context.Context) error {
		return w.store.Set(ctx, MessagesPath(violationID), msg)
	})
	return msg
}

// CreateTask creates an "Open" task for a system and returns it.
func (w *Writer) CreateTask(ctx context.Context, pwsid, violationID, text string) Task {
	task := Task{
		ID:          util.NewID("task"),
		PWSID:       pwsid,
		ViolationID: violationID,
		Text:        text,
		Status:      DefaultTaskStatus,
		CreatedAt:   w.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	w.fire(ctx, func(ctx context.Context) error {
		return w.store.Put(ctx, TasksPath(pwsid), task.ID, task)
	})
	return task
}

// RecordResolution writes the advisory resolution record for a violation.
func (w *Writer) RecordResolution(ctx context.Context, pwsid, violationID, resolvedBy string) Resolution {
	res := Resolution{
		ViolationID: violationID,
		PWSID:       pwsid,
		ResolvedBy:  resolvedBy,
		ResolvedAt:  w.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	w.fire(ctx, func(ctx context.Context) error {
		return w.store.Put(ctx, ResolutionsPath(violationID), violationID, res)
	})
	return res
}

// fire runs a store write detached from the request, logging failures.
// Store unavailability stays invisible to the caller.
func (w *Writer) fire(ctx context.Context, write func(context.Context) error) {
	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := write(writeCtx); err != nil {
			log.Printf("annot: store write failed: %v", err)
		}
	}()
}
