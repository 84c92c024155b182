package annot

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"watershed/api/internal/replstore"
)

// TaskList is one mounted task container for a system. Same lifecycle as
// MessageThread, but entries are keyed by task ID and re-delivery
// replaces: task status can change, so the old entry is removed and the
// new one appended.
type TaskList struct {
	pwsid string

	mu       sync.Mutex
	state    State
	tasks    []Task
	updates  chan Task
	done     chan struct{}
	detached bool
	cancel   func()
}

// OpenTaskList subscribes to the system's task partition.
func OpenTaskList(ctx context.Context, store replstore.Store, pwsid string) (*TaskList, error) {
	l := &TaskList{
		pwsid:   pwsid,
		state:   Unsubscribed,
		updates: make(chan Task, 64),
		done:    make(chan struct{}),
	}

	entries, cancel, err := store.Subscribe(ctx, TasksPath(pwsid))
	if err != nil {
		return nil, err
	}
	l.cancel = cancel
	l.state = Subscribing

	go l.pump(entries)
	return l, nil
}

func (l *TaskList) pump(entries <-chan replstore.Entry) {
	defer close(l.updates)
	for entry := range entries {
		var task Task
		if err := json.Unmarshal(entry.Value, &task); err != nil {
			log.Printf("annot: bad task on %s: %v", l.pwsid, err)
			continue
		}
		if task.ID == "" {
			task.ID = entry.Key
		}
		l.apply(task)
	}
}

// apply upserts by task ID: remove any existing entry with the same ID,
// then reinsert the delivered one.
func (l *TaskList) apply(task Task) {
	l.mu.Lock()
	if l.detached {
		l.mu.Unlock()
		return
	}
	l.state = Live
	if task.ID == "" {
		l.mu.Unlock()
		return
	}
	for i, existing := range l.tasks {
		if existing.ID == task.ID {
			l.tasks = append(l.tasks[:i], l.tasks[i+1:]...)
			break
		}
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	// Blocking send; a detach releases the pump.
	select {
	case l.updates <- task:
	case <-l.done:
	}
}

// Updates streams each applied task (including replacements).
func (l *TaskList) Updates() <-chan Task {
	return l.updates
}

// Tasks returns the current task set in delivery order.
func (l *TaskList) Tasks() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// State reports the container lifecycle state.
func (l *TaskList) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close detaches the container and tears down the subscription.
func (l *TaskList) Close() {
	l.mu.Lock()
	if !l.detached {
		l.detached = true
		close(l.done)
	}
	l.state = Unsubscribed
	l.mu.Unlock()
	l.cancel()
}
