package actor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/dreamware/shardkv/internal/storage"
)

func newTestActor(t *testing.T) (*Actor[string, int], *storage.Store[string, int]) {
	t.Helper()
	s, err := storage.New[string, int](1, 8)
	require.NoError(t, err)
	a := New(s, WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 1})))
	t.Cleanup(func() {
		_ = a.Shutdown()
		<-a.Done()
	})
	return a, s
}

func TestActorFIFO(t *testing.T) {
	a, s := newTestActor(t)
	ctx := context.Background()

	require.NoError(t, a.Insert("k", 1))
	require.NoError(t, a.Insert("k", 2))
	require.NoError(t, a.Remove("k"))
	require.NoError(t, a.Insert("k", 3))

	v, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(4), s.OpCount())
	// The reply is delivered before the Get is counted as processed.
	assert.Eventually(t, func() bool { return a.Processed() == 5 }, time.Second, time.Millisecond)
}

func TestActorGet(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	t.Run("absent key still replies", func(t *testing.T) {
		v, ok, err := a.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("raw operation with reply channel", func(t *testing.T) {
		require.NoError(t, a.Insert("raw", 7))
		reply := make(chan Lookup[int], 1)
		require.NoError(t, a.Send(Get[string, int]{Key: "raw", Reply: reply}))

		select {
		case r := <-reply:
			assert.True(t, r.Found)
			assert.Equal(t, 7, r.Value)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	})

	t.Run("unbuffered reply is rejected", func(t *testing.T) {
		err := a.Send(Get[string, int]{Key: "raw", Reply: make(chan Lookup[int])})
		assert.ErrorIs(t, err, ErrUnbufferedReply)
		err = a.Send(&Get[string, int]{Key: "raw", Reply: make(chan Lookup[int])})
		assert.ErrorIs(t, err, ErrUnbufferedReply)
		err = a.Send(Find[string, int]{Reply: make(chan FindResult[string, int])})
		assert.ErrorIs(t, err, ErrUnbufferedReply)
	})

	t.Run("buffered reply arrives after a delay", func(t *testing.T) {
		reply := make(chan Lookup[int], 1)
		require.NoError(t, a.Send(Get[string, int]{Key: "raw", Reply: reply}))
		time.Sleep(20 * time.Millisecond)

		select {
		case r := <-reply:
			assert.True(t, r.Found)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	})

	t.Run("abandoned reply does not stall the actor", func(t *testing.T) {
		full := make(chan Lookup[int], 1)
		full <- Lookup[int]{}
		require.NoError(t, a.Send(Get[string, int]{Key: "raw", Reply: full}))
		require.NoError(t, a.Send(Get[string, int]{Key: "raw"}))
		require.NoError(t, a.Send(Find[string, int]{}))

		v, ok, err := a.Get(ctx, "raw")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 7, v)
	})
}

func TestActorFind(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	for i := 1000; i < 1100; i++ {
		require.NoError(t, a.Insert(fmt.Sprintf("key-%d", i), i))
	}

	got, err := a.Find(ctx, storage.PredicateFunc[string, int](func(_ string, v int) bool { return v > 1095 }))
	require.NoError(t, err)
	values := make([]int, 0, len(got))
	for _, e := range got {
		values = append(values, e.Value)
	}
	slices.Sort(values)
	assert.Equal(t, []int{1096, 1097, 1098, 1099}, values)

	none, err := a.Find(ctx, storage.PredicateFunc[string, int](func(string, int) bool { return false }))
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := a.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 100)

	_, err = a.Find(ctx, storage.PredicateFunc[string, int](func(string, int) bool { panic("bad predicate") }))
	assert.ErrorIs(t, err, storage.ErrCallbackPanic)
	assert.Equal(t, Running, a.State())
}

func TestActorClear(t *testing.T) {
	a, s := newTestActor(t)
	ctx := context.Background()

	require.NoError(t, a.Insert("k", 1))
	require.NoError(t, a.Clear())
	require.NoError(t, a.Insert("post-clear", 42))

	_, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := a.Get(ctx, "post-clear")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, s.Len())
}

func TestActorShutdown(t *testing.T) {
	a, s := newTestActor(t)
	ctx := context.Background()

	require.NoError(t, a.Insert("before", 1))
	require.NoError(t, a.Shutdown())
	// Either rejected or queued behind Shutdown; never applied.
	_ = a.Insert("after", 2)

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not stop")
	}

	assert.Equal(t, Stopped, a.State())
	assert.Equal(t, "stopped", a.State().String())
	_, ok := s.Get("before")
	assert.True(t, ok, "operations ahead of Shutdown are applied")
	_, ok = s.Get("after")
	assert.False(t, ok, "operations behind Shutdown are never applied")
	assert.Zero(t, a.Pending())

	assert.ErrorIs(t, a.Insert("late", 3), ErrStopped)
	_, _, err := a.Get(ctx, "before")
	assert.ErrorIs(t, err, ErrStopped)
	_, err = a.Find(ctx, nil)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, a.Send(nil), ErrNilOperation)
}

func TestActorContextCancel(t *testing.T) {
	a, _ := newTestActor(t)
	require.NoError(t, a.Insert("k", 1))

	// Keep the actor busy inside a Find predicate.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	require.NoError(t, a.Send(Find[string, int]{
		Predicate: storage.PredicateFunc[string, int](func(string, int) bool {
			once.Do(func() { close(entered) })
			<-release
			return true
		}),
		Reply: make(chan FindResult[string, int], 1),
	}))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := a.Get(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, ok, err := a.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestActorConcurrentProducers(t *testing.T) {
	a, s := newTestActor(t)
	ctx := context.Background()

	const producers, perProducer = 10, 100
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := a.Insert(fmt.Sprintf("p%d-k%d", p, i), i); err != nil {
					t.Errorf("insert: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	// A Get sent after every insert is applied after all of them.
	_, _, err := a.Get(ctx, "p0-k0")
	require.NoError(t, err)
	assert.Equal(t, producers*perProducer, s.Len())
	assert.Equal(t, uint64(producers*perProducer), s.OpCount())
}
