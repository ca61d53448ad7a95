package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(time.Second)
	defer b.Shutdown()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	b.Subscribe("topic", "sub1", func(event any) {
		mu.Lock()
		got = append(got, event.(int))
		n := len(got)
		mu.Unlock()
		if n == 5 {
			close(done)
		}
	})

	for i := 0; i < 5; i++ {
		b.Publish("topic", i)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d (order not preserved)", i, v, i)
		}
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New(time.Second)
	defer b.Shutdown()

	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe("topic", "sub1", func(event any) { wg.Done() })
	b.Subscribe("topic", "sub2", func(event any) { wg.Done() })

	b.Publish("topic", "hello")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestRequestReplySucceeds(t *testing.T) {
	b := New(time.Second)
	defer b.Shutdown()

	if err := b.Respond("echo", func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	reply, err := b.Request(context.Background(), "echo", "ping")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply != "ping" {
		t.Errorf("reply = %v, want ping", reply)
	}
}

func TestRequestTimesOutWhenResponderStalls(t *testing.T) {
	b := New(20 * time.Millisecond)
	defer b.Shutdown()

	b.Respond("slow", func(ctx context.Context, payload any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := b.Request(context.Background(), "slow", nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestRequestUnknownDestination(t *testing.T) {
	b := New(time.Second)
	defer b.Shutdown()

	_, err := b.Request(context.Background(), "nobody", nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered destination")
	}
}

func TestRespondTwiceForSameDestinationErrors(t *testing.T) {
	b := New(time.Second)
	defer b.Shutdown()

	ok := func(ctx context.Context, payload any) (any, error) { return nil, nil }
	if err := b.Respond("dest", ok); err != nil {
		t.Fatalf("first Respond: %v", err)
	}
	if err := b.Respond("dest", ok); err == nil {
		t.Fatal("expected error registering a second responder for the same destination")
	}
}
