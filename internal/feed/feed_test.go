package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/pkg/interfaces"
)

func TestFeedDeliversEventsInOrder(t *testing.T) {
	f := New(Options{})
	t.Cleanup(func() { _ = f.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, interfaces.ChangeEvent{
		Type:     interfaces.ChangeAdded,
		ID:       "content:index.md",
		Version:  1,
		Document: interfaces.Document{"_id": "content:index.md", "title": "Hello", "_order": int64(2)},
	}))
	require.NoError(t, f.Publish(ctx, interfaces.ChangeEvent{
		Type:    interfaces.ChangeRemoved,
		ID:      "content:index.md",
		Version: 2,
	}))

	first := receive(t, events)
	assert.Equal(t, interfaces.ChangeAdded, first.Type)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "Hello", first.Document.Title())
	assert.Equal(t, int64(2), first.Document["_order"])

	second := receive(t, events)
	assert.Equal(t, interfaces.ChangeRemoved, second.Type)
	assert.Nil(t, second.Document)
}

func TestFeedClosesSubscriberOnCancel(t *testing.T) {
	f := New(Options{})
	t.Cleanup(func() { _ = f.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	events, err := f.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
}

func TestIdleSubscriberDoesNotStallIndexWrites(t *testing.T) {
	f := New(Options{Buffer: 4})
	t.Cleanup(func() { _ = f.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.Subscribe(ctx)
	require.NoError(t, err)

	ix := index.New(index.WithPublisher(f))
	done := make(chan error, 1)
	go func() {
		for i := range 20 {
			if _, err := ix.Upsert(ctx, interfaces.Document{"_id": fmt.Sprintf("content:%02d.md", i)}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("index writes stalled at version %d", ix.Snapshot().Version())
	}
	assert.Equal(t, uint64(20), ix.Snapshot().Version())
	assert.Equal(t, uint64(16), f.Dropped())

	first := receive(t, events)
	assert.Equal(t, uint64(1), first.Version)
}

func TestFeedRejectsUseAfterClose(t *testing.T) {
	f := New(Options{})
	require.NoError(t, f.Close())

	assert.ErrorIs(t, f.Publish(context.Background(), interfaces.ChangeEvent{ID: "x"}), ErrClosed)
	_, err := f.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func receive(t *testing.T, events <-chan interfaces.ChangeEvent) interfaces.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return interfaces.ChangeEvent{}
}
