package annot

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"watershed/api/internal/replstore"
)

// fakeStore delivers scripted entries and records writes.
type fakeStore struct {
	entries chan replstore.Entry
	puts    chan replstore.Entry
	subErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(chan replstore.Entry, 16),
		puts:    make(chan replstore.Entry, 16),
	}
}

func (f *fakeStore) Put(ctx context.Context, path, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.puts <- replstore.Entry{Path: path, Key: key, Value: raw}
	return nil
}

func (f *fakeStore) Set(ctx context.Context, path string, value any) error {
	return f.Put(ctx, path, "generated", value)
}

func (f *fakeStore) Subscribe(ctx context.Context, path string) (<-chan replstore.Entry, func(), error) {
	if f.subErr != nil {
		return nil, nil, f.subErr
	}
	return f.entries, func() {}, nil
}

func (f *fakeStore) push(t *testing.T, path, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	f.entries <- replstore.Entry{Path: path, Key: key, Value: raw}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestThreadDeduplicatesByTimestamp(t *testing.T) {
	store := newFakeStore()
	thread, err := OpenMessageThread(context.Background(), store, "v1")
	if err != nil {
		t.Fatalf("OpenMessageThread failed: %v", err)
	}
	defer thread.Close()

	msg := Message{Text: "check the sample results", Timestamp: "2026-08-28T10:00:00Z", Sender: "User"}
	store.push(t, "messages/v1", "k1", msg)
	store.push(t, "messages/v1", "k2", msg)
	other := Message{Text: "second note", Timestamp: "2026-08-28T10:05:00Z", Sender: "User"}
	store.push(t, "messages/v1", "k3", other)

	waitFor(t, func() bool { return len(thread.Messages()) == 2 })

	messages := thread.Messages()
	if messages[0].Text != "check the sample results" || messages[1].Text != "second note" {
		t.Errorf("unexpected messages: %+v", messages)
	}
}

func TestThreadStateTransitions(t *testing.T) {
	store := newFakeStore()
	thread, err := OpenMessageThread(context.Background(), store, "v1")
	if err != nil {
		t.Fatalf("OpenMessageThread failed: %v", err)
	}
	defer thread.Close()

	if thread.State() != Subscribing {
		t.Errorf("expected Subscribing before first delivery, got %v", thread.State())
	}

	store.push(t, "messages/v1", "k1", Message{Text: "hi", Timestamp: "t1"})
	waitFor(t, func() bool { return thread.State() == Live })
}

func TestThreadDetachDropsLatePushes(t *testing.T) {
	store := newFakeStore()
	thread, err := OpenMessageThread(context.Background(), store, "v1")
	if err != nil {
		t.Fatalf("OpenMessageThread failed: %v", err)
	}

	store.push(t, "messages/v1", "k1", Message{Text: "before", Timestamp: "t1"})
	waitFor(t, func() bool { return len(thread.Messages()) == 1 })

	thread.Close()
	if thread.State() != Unsubscribed {
		t.Errorf("expected Unsubscribed after close, got %v", thread.State())
	}

	// A push that raced the close must not land in the container.
	thread.apply(Message{Text: "after", Timestamp: "t2"})
	if got := len(thread.Messages()); got != 1 {
		t.Errorf("detached container accepted a push: %d messages", got)
	}
}

func TestThreadDeliversEveryReplayedMessage(t *testing.T) {
	store := newFakeStore()
	store.entries = make(chan replstore.Entry, 256)
	thread, err := OpenMessageThread(context.Background(), store, "v1")
	if err != nil {
		t.Fatalf("OpenMessageThread failed: %v", err)
	}
	defer thread.Close()

	// A long-lived thread can replay far more history than the update
	// buffer holds; none of it may be lost before the viewer drains.
	const total = 200
	for i := 0; i < total; i++ {
		store.push(t, "messages/v1", fmt.Sprintf("k%d", i), Message{
			Text:      fmt.Sprintf("note %d", i),
			Timestamp: fmt.Sprintf("2026-08-28T10:00:00.%03dZ", i),
		})
	}

	delivered := 0
	timeout := time.After(5 * time.Second)
	for delivered < total {
		select {
		case _, ok := <-thread.Updates():
			if !ok {
				t.Fatalf("updates closed after %d of %d", delivered, total)
			}
			delivered++
		case <-timeout:
			t.Fatalf("delivered %d of %d before timeout", delivered, total)
		}
	}
	if got := len(thread.Messages()); got != total {
		t.Errorf("snapshot holds %d messages, want %d", got, total)
	}
}

func TestTaskListDeliversEveryReplayedTask(t *testing.T) {
	store := newFakeStore()
	store.entries = make(chan replstore.Entry, 256)
	list, err := OpenTaskList(context.Background(), store, "GA0170001")
	if err != nil {
		t.Fatalf("OpenTaskList failed: %v", err)
	}
	defer list.Close()

	const total = 100
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("task-%d", i)
		store.push(t, "tasks/GA0170001", id, Task{ID: id, PWSID: "GA0170001", Text: "inspect", Status: "Open"})
	}

	delivered := 0
	timeout := time.After(5 * time.Second)
	for delivered < total {
		select {
		case _, ok := <-list.Updates():
			if !ok {
				t.Fatalf("updates closed after %d of %d", delivered, total)
			}
			delivered++
		case <-timeout:
			t.Fatalf("delivered %d of %d before timeout", delivered, total)
		}
	}
	if got := len(list.Tasks()); got != total {
		t.Errorf("list holds %d tasks, want %d", got, total)
	}
}

func TestThreadIgnoresEmptyTimestamps(t *testing.T) {
	store := newFakeStore()
	thread, err := OpenMessageThread(context.Background(), store, "v1")
	if err != nil {
		t.Fatalf("OpenMessageThread failed: %v", err)
	}
	defer thread.Close()

	store.push(t, "messages/v1", "k1", Message{Text: "no timestamp"})
	store.push(t, "messages/v1", "k2", Message{Text: "real", Timestamp: "t1"})

	waitFor(t, func() bool { return len(thread.Messages()) == 1 })
	if thread.Messages()[0].Text != "real" {
		t.Errorf("unexpected messages: %+v", thread.Messages())
	}
}

func TestTaskListReplacesByID(t *testing.T) {
	store := newFakeStore()
	list, err := OpenTaskList(context.Background(), store, "GA0170001")
	if err != nil {
		t.Fatalf("OpenTaskList failed: %v", err)
	}
	defer list.Close()

	open := Task{ID: "task-1", PWSID: "GA0170001", Text: "collect samples", Status: "Open"}
	store.push(t, "tasks/GA0170001", "task-1", open)
	waitFor(t, func() bool { return len(list.Tasks()) == 1 })

	done := open
	done.Status = "Done"
	store.push(t, "tasks/GA0170001", "task-1", done)
	waitFor(t, func() bool {
		tasks := list.Tasks()
		return len(tasks) == 1 && tasks[0].Status == "Done"
	})
}

func TestTaskListBackfillsIDFromKey(t *testing.T) {
	store := newFakeStore()
	list, err := OpenTaskList(context.Background(), store, "GA0170001")
	if err != nil {
		t.Fatalf("OpenTaskList failed: %v", err)
	}
	defer list.Close()

	store.push(t, "tasks/GA0170001", "task-9", Task{Text: "no id in payload", Status: "Open"})
	waitFor(t, func() bool { return len(list.Tasks()) == 1 })
	if got := list.Tasks()[0].ID; got != "task-9" {
		t.Errorf("expected ID backfilled from entry key, got %q", got)
	}
}
