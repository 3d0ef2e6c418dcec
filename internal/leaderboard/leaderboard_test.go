package leaderboard

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mentalmath/internal/store"
)

type fakeSource struct {
	users      map[int64]*store.User
	boardCalls int
	rankCalls  int
}

func (f *fakeSource) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeSource) GetLeaderboard(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	f.boardCalls++
	var out []store.LeaderboardEntry
	for _, u := range f.users {
		if u.TotalScore > 0 {
			out = append(out, store.LeaderboardEntry{UserID: u.ID, Name: u.DisplayName(), Score: u.TotalScore, Level: u.CurrentLevel})
		}
	}
	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) GetRank(_ context.Context, id int64) (store.Rank, error) {
	f.rankCalls++
	return store.Rank{Position: 99}, nil
}

func sortEntries(out []store.LeaderboardEntry) {
	sort.Slice(out, func(i, j int) bool {
		return Composite(out[i].Score, out[i].Level) > Composite(out[j].Score, out[j].Level)
	})
	for i := range out {
		out[i].Position = i + 1
	}
}

// memCache is an in-process Cache with the same ordering as RedisCache.
type memCache struct {
	entries map[int64]store.LeaderboardEntry
	fail    error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[int64]store.LeaderboardEntry)}
}

func (m *memCache) Put(_ context.Context, e store.LeaderboardEntry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries[e.UserID] = e
	return nil
}

func (m *memCache) Remove(_ context.Context, id int64) error {
	delete(m.entries, id)
	return m.fail
}

func (m *memCache) Top(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	var out []store.LeaderboardEntry
	for _, e := range m.entries {
		out = append(out, e)
	}
	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCache) Entry(_ context.Context, id int64) (store.LeaderboardEntry, error) {
	if m.fail != nil {
		return store.LeaderboardEntry{}, m.fail
	}
	e, ok := m.entries[id]
	if !ok {
		return store.LeaderboardEntry{}, ErrNotCached
	}
	return e, nil
}

func (m *memCache) Better(_ context.Context, score, level int) (int, error) {
	n := 0
	for _, e := range m.entries {
		if Composite(e.Score, e.Level) > Composite(score, level) {
			n++
		}
	}
	return n, m.fail
}

func (m *memCache) Len(_ context.Context) (int, error) {
	return len(m.entries), m.fail
}

func user(id int64, name string, score, level int) *store.User {
	return &store.User{
		Profile:      store.Profile{ID: id, FirstName: name},
		TotalScore:   score,
		CurrentLevel: level,
	}
}

func TestComposite_OrdersTiesByLevel(t *testing.T) {
	assert.Greater(t, Composite(100, 5), Composite(100, 2))
	assert.Greater(t, Composite(101, 1), Composite(100, 10))
	assert.Equal(t, Composite(3, 7), Composite(3, 7))
}

func TestService_UsesCache(t *testing.T) {
	src := &fakeSource{users: map[int64]*store.User{
		1: user(1, "a", 100, 2),
		2: user(2, "b", 100, 5),
		3: user(3, "c", 200, 1),
		4: user(4, "d", 0, 9),
	}}
	cache := newMemCache()
	svc := NewService(src, cache, nil)
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	assert.Len(t, cache.entries, 3)
	src.boardCalls = 0

	top, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{top[0].UserID, top[1].UserID, top[2].UserID})
	assert.Zero(t, src.boardCalls)

	rank, err := svc.Rank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, store.Rank{Position: 3, TotalUsers: 3, Score: 100, Level: 2}, rank)
	assert.Zero(t, src.rankCalls)

	// Uncached users fall through to the store.
	_, err = svc.Rank(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, src.rankCalls)
}

func TestService_RecordRefreshesEntry(t *testing.T) {
	src := &fakeSource{users: map[int64]*store.User{1: user(1, "a", 0, 1)}}
	cache := newMemCache()
	svc := NewService(src, cache, nil)
	ctx := context.Background()

	svc.Record(ctx, 1)
	assert.Empty(t, cache.entries, "zero-score users are not ranked")

	src.users[1] = user(1, "a", 45, 2)
	svc.Record(ctx, 1)
	assert.Equal(t, store.LeaderboardEntry{UserID: 1, Name: "a", Score: 45, Level: 2}, cache.entries[1])

	src.users[1] = user(1, "a", 0, 1)
	svc.Record(ctx, 1)
	assert.Empty(t, cache.entries, "reset users leave the cache")
}

func TestService_FallsBackOnCacheFailure(t *testing.T) {
	src := &fakeSource{users: map[int64]*store.User{1: user(1, "a", 10, 1)}}
	cache := newMemCache()
	cache.fail = errors.New("connection refused")
	svc := NewService(src, cache, nil)
	ctx := context.Background()

	top, err := svc.Top(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Equal(t, 1, src.boardCalls)

	_, err = svc.Rank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, src.rankCalls)

	// Record must not panic or surface the failure.
	svc.Record(ctx, 1)
}

func TestService_NoCache(t *testing.T) {
	src := &fakeSource{users: map[int64]*store.User{1: user(1, "a", 10, 1)}}
	svc := NewService(src, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	_, err := svc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, src.boardCalls)
	svc.Record(ctx, 1)
}

func TestDecodeEntry(t *testing.T) {
	e, err := decodeEntry("42", `{"name":"Ada","score":90,"level":3}`)
	require.NoError(t, err)
	assert.Equal(t, store.LeaderboardEntry{UserID: 42, Name: "Ada", Score: 90, Level: 3}, e)

	_, err = decodeEntry("x", `{}`)
	assert.Error(t, err)
	_, err = decodeEntry("1", `not json`)
	assert.Error(t, err)
}
