package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mysbind/userhub/internal/model"
	"mysbind/userhub/internal/repository"
)

func TestRegistryReturnsSingleInstancePerKey(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryNoteUserRepository(), newFakeSource(), nil, zap.NewNop())
	ctx := context.Background()

	first, err := registry.GetOrLoad(ctx, "10001")
	require.NoError(t, err)
	second, err := registry.GetOrLoad(ctx, "10001")
	require.NoError(t, err)
	other, err := registry.GetOrLoad(ctx, "10002")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, DefaultGames, registry.Games())
}

func TestRegistryConcurrentLoadsShareInstance(t *testing.T) {
	store := repository.NewMemoryNoteUserRepository()
	source := newFakeSource(newFakeCredential("c1", "100"))
	require.NoError(t, store.Save(context.Background(), &model.NoteUser{UserKey: "10001", Ltuids: "c1"}))
	registry := NewRegistry(store, source, DefaultGames, zap.NewNop())

	const workers = 16
	records := make([]*Record, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := registry.GetOrLoad(context.Background(), "10001")
			assert.NoError(t, err)
			records[i] = rec
		}()
	}
	wg.Wait()

	for _, rec := range records {
		assert.Same(t, records[0], rec)
	}
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryDoesNotCacheFailedLoads(t *testing.T) {
	store := repository.NewMemoryNoteUserRepository()
	source := newFakeSource(newFakeCredential("c1", "100"))
	require.NoError(t, store.Save(context.Background(), &model.NoteUser{UserKey: "10001", Ltuids: "c1"}))
	registry := NewRegistry(store, source, DefaultGames, zap.NewNop())

	source.createErr = errBackend
	_, err := registry.GetOrLoad(context.Background(), "10001")
	require.ErrorIs(t, err, errBackend)
	assert.Zero(t, registry.Len())

	source.createErr = nil
	rec, err := registry.GetOrLoad(context.Background(), "10001")
	require.NoError(t, err)
	assert.Equal(t, "100", rec.ActiveUid(GameGenshin))
}

func TestForEachVisitsBoundUsersInOrder(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryNoteUserRepository(), newFakeSource(), DefaultGames, zap.NewNop())
	enum := fakeEnumerator{bindings: map[string][]string{
		"30": {"c3"},
		"10": {"c1"},
		"20": nil,
	}}

	var visited []string
	err := registry.ForEach(context.Background(), enum, func(_ context.Context, rec *Record) (bool, error) {
		visited = append(visited, rec.Key())
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "30"}, visited)
}

func TestForEachStopsWhenCallbackDeclines(t *testing.T) {
	source := newFakeSource()
	registry := NewRegistry(repository.NewMemoryNoteUserRepository(), source, DefaultGames, zap.NewNop())
	enum := fakeEnumerator{bindings: map[string][]string{"1": {"a"}, "2": {"b"}, "3": {"c"}}}

	var visited []string
	err := registry.ForEach(context.Background(), enum, func(_ context.Context, rec *Record) (bool, error) {
		visited = append(visited, rec.Key())
		return rec.Key() != "2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, visited)
	assert.Equal(t, 2, registry.Len(), "unvisited users are not materialized")
}

func TestForEachPropagatesErrors(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryNoteUserRepository(), newFakeSource(), DefaultGames, zap.NewNop())

	err := registry.ForEach(context.Background(), fakeEnumerator{err: errBackend}, nil)
	assert.ErrorIs(t, err, errBackend)

	enum := fakeEnumerator{bindings: map[string][]string{"1": {"a"}, "2": {"b"}}}
	calls := 0
	err = registry.ForEach(context.Background(), enum, func(context.Context, *Record) (bool, error) {
		calls++
		return true, errBackend
	})
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, calls)
}

func TestForEachHonorsCancellation(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryNoteUserRepository(), newFakeSource(), DefaultGames, zap.NewNop())
	enum := fakeEnumerator{bindings: map[string][]string{"1": {"a"}, "2": {"b"}}}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := registry.ForEach(ctx, enum, func(context.Context, *Record) (bool, error) {
		calls++
		cancel()
		return true, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
