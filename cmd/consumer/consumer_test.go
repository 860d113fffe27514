package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/roadside-matching/internal/models"
)

// fakeInbox implements InboxWriter for tests
type fakeInbox struct {
	failPush  int // number of times to fail LPush before succeeding
	pushCalls int
	trimCalls int
	lists     map[string][][]byte
	trimmedTo int
}

func (f *fakeInbox) LPush(ctx context.Context, key string, value []byte) error {
	f.pushCalls++
	if f.pushCalls <= f.failPush {
		return errors.New("push fail")
	}
	if f.lists == nil {
		f.lists = map[string][][]byte{}
	}
	f.lists[key] = append([][]byte{value}, f.lists[key]...)
	return nil
}

func (f *fakeInbox) LTrim(ctx context.Context, key string, size int) error {
	f.trimCalls++
	f.trimmedTo = size
	if len(f.lists[key]) > size {
		f.lists[key] = f.lists[key][:size]
	}
	return nil
}

var accepted = models.Event{
	Type:            models.EventAccepted,
	RequestID:       "r1",
	ClientID:        "client-1",
	ProviderID:      "p1",
	ProviderOwnerID: "garage-acc",
	Status:          models.StatusAccepted,
}

func TestDeliverWithRetry_WritesBothInboxes(t *testing.T) {
	f := &fakeInbox{}
	if err := deliverWithRetry(context.Background(), f, accepted, 10, 3, time.Millisecond); err != nil {
		t.Fatalf("unexpected err=%v", err)
	}
	for _, id := range []string{"client-1", "garage-acc"} {
		items := f.lists[inboxKey(id)]
		if len(items) != 1 {
			t.Fatalf("inbox %s: got %d items", id, len(items))
		}
		var ev models.Event
		if err := json.Unmarshal(items[0], &ev); err != nil || ev.RequestID != "r1" {
			t.Fatalf("inbox %s: bad payload %s (%v)", id, items[0], err)
		}
	}
	if f.trimmedTo != 10 {
		t.Fatalf("expected trim to 10, got %d", f.trimmedTo)
	}
}

func TestDeliverWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeInbox{failPush: 1}
	start := time.Now()
	if err := deliverWithRetry(context.Background(), f, accepted, 10, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.pushCalls != 3 {
		t.Fatalf("expected one retry plus second recipient, got %d pushes", f.pushCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestDeliverWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeInbox{failPush: 5}
	if err := deliverWithRetry(context.Background(), f, accepted, 10, 3, time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.pushCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.pushCalls)
	}
}

func TestDeliverWithRetry_KeepsInboxBounded(t *testing.T) {
	f := &fakeInbox{}
	for i := 0; i < 5; i++ {
		if err := deliverWithRetry(context.Background(), f, accepted, 2, 1, time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(f.lists[inboxKey("client-1")]); n != 2 {
		t.Fatalf("expected 2 items, got %d", n)
	}
}

func TestRecipientsSkipsUnknownProvider(t *testing.T) {
	ev := accepted
	ev.ProviderOwnerID = ""
	got := recipients(ev)
	if len(got) != 1 || got[0] != "client-1" {
		t.Fatalf("got %v", got)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, 5, time.Hour, func() error { return errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
