package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/conversation"
)

// fakeCommands implements commands over a map so the store can be exercised
// without a Redis server.
type fakeCommands struct {
	values  map[string]string
	ttls    map[string]time.Duration
	pingErr error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeCommands) {
	t.Helper()
	cmds := newFakeCommands()
	store, err := newStoreWithCommands(cmds, "", ttl)
	require.NoError(t, err)
	return store, cmds
}

func snapshotFixture(version int) *conversation.Snapshot {
	return &conversation.Snapshot{
		ID:          "c1",
		Version:     version,
		Instruction: "greet Bob",
		PlanDoc:     `(plan (step greet (param name "Bob")))`,
		Pending: []conversation.Pending{
			{StepIndex: 0, ActionID: "greet", Name: "times", Prompt: "Please provide `times`"},
		},
		Supplied: []conversation.StepValues{
			{StepIndex: 0, ActionID: "greet", Values: map[string]any{"name": "Bob"}},
		},
		UpdatedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, snapshotFixture(1)))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, snapshotFixture(1), got)
}

func TestSaveRejectsStaleVersions(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, snapshotFixture(2)))
	require.ErrorIs(t, store.Save(ctx, snapshotFixture(2)), conversation.ErrStaleSnapshot)
	require.ErrorIs(t, store.Save(ctx, snapshotFixture(1)), conversation.ErrStaleSnapshot)
	require.NoError(t, store.Save(ctx, snapshotFixture(3)))
}

func TestSaveAppliesTTL(t *testing.T) {
	store, cmds := newTestStore(t, time.Hour)
	require.NoError(t, store.Save(context.Background(), snapshotFixture(1)))
	require.Equal(t, time.Hour, cmds.ttls[DefaultKeyPrefix+"c1"])
}

func TestLoadMissingConversation(t *testing.T) {
	store, _ := newTestStore(t, 0)
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, snapshotFixture(1)))
	require.NoError(t, store.Delete(ctx, "c1"))
	require.NoError(t, store.Delete(ctx, "c1"))
	_, err := store.Load(ctx, "c1")
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestPing(t *testing.T) {
	store, cmds := newTestStore(t, 0)
	require.Equal(t, "conversation-redis", store.Name())
	require.NoError(t, store.Ping(context.Background()))

	cmds.pingErr = context.DeadlineExceeded
	require.Error(t, store.Ping(context.Background()))
}

func TestValidation(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.Error(t, store.Save(ctx, &conversation.Snapshot{}))
	_, err := store.Load(ctx, "")
	require.Error(t, err)
	require.Error(t, store.Delete(ctx, ""))

	_, err = New(Options{})
	require.Error(t, err)
}
