package annot

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"watershed/api/internal/replstore"
)

// State is the lifecycle of one open thread container.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Live
)

// MessageThread is one mounted message container for a violation. Each
// view gets its own thread; when the view unmounts the thread is closed
// and a fresh one is opened on re-entry. A closed thread drops every
// late push, so stale callbacks can never write into a detached
// container.
type MessageThread struct {
	violationID string

	mu       sync.Mutex
	state    State
	seen     map[string]struct{}
	messages []Message
	updates  chan Message
	done     chan struct{}
	detached bool
	cancel   func()
}

// OpenMessageThread subscribes to the violation's message partition and
// starts applying pushes. The thread goes Subscribing immediately and
// Live on the first delivery; an unreachable store just means the thread
// stays empty until pushes arrive.
func OpenMessageThread(ctx context.Context, store replstore.Store, violationID string) (*MessageThread, error) {
	t := &MessageThread{
		violationID: violationID,
		state:       Unsubscribed,
		seen:        map[string]struct{}{},
		updates:     make(chan Message, 64),
		done:        make(chan struct{}),
	}

	entries, cancel, err := store.Subscribe(ctx, MessagesPath(violationID))
	if err != nil {
		return nil, err
	}
	t.cancel = cancel
	t.state = Subscribing

	go t.pump(entries)
	return t, nil
}

func (t *MessageThread) pump(entries <-chan replstore.Entry) {
	defer close(t.updates)
	for entry := range entries {
		var msg Message
		if err := json.Unmarshal(entry.Value, &msg); err != nil {
			log.Printf("annot: bad message on %s: %v", t.violationID, err)
			continue
		}
		t.apply(msg)
	}
}

// apply records a delivered message idempotently: a timestamp already
// rendered is dropped, and nothing reaches a detached container.
func (t *MessageThread) apply(msg Message) {
	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return
	}
	t.state = Live
	if msg.Timestamp == "" {
		t.mu.Unlock()
		return
	}
	if _, dup := t.seen[msg.Timestamp]; dup {
		t.mu.Unlock()
		return
	}
	t.seen[msg.Timestamp] = struct{}{}
	t.messages = append(t.messages, msg)
	t.mu.Unlock()

	// The send is outside the lock and blocks until the consumer takes
	// it. Every applied message reaches Updates; only a detach releases
	// the pump early.
	select {
	case t.updates <- msg:
	case <-t.done:
	}
}

// Updates streams each newly applied message. The channel closes when the
// thread is detached.
func (t *MessageThread) Updates() <-chan Message {
	return t.updates
}

// Messages returns the deduplicated messages applied so far, in delivery
// order. Delivery order is the display order; the store does not promise
// send order.
func (t *MessageThread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// State reports the thread lifecycle state.
func (t *MessageThread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close detaches the container and tears down the subscription.
func (t *MessageThread) Close() {
	t.mu.Lock()
	if !t.detached {
		t.detached = true
		close(t.done)
	}
	t.state = Unsubscribed
	t.mu.Unlock()
	t.cancel()
}
