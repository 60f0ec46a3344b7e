package tracker_test

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string]string
	writes int
	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.writes++
	s.data[key] = value
	return nil
}

func (s *fakeStore) baseline(t *testing.T, key string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s.data[tracker.BaselineKey(key)], 10, 64)
	require.NoError(t, err)
	return n
}

func (s *fakeStore) lastUpdate(t *testing.T, key string) time.Time {
	t.Helper()
	n, err := strconv.ParseInt(s.data[tracker.LastUpdateKey(key)], 10, 64)
	require.NoError(t, err)
	return time.UnixMilli(n)
}

var day = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.Local)

func TestDailyScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	// First run ever.
	s, err := tr.Update(ctx, "A", 100, day)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Current)
	assert.Equal(t, int64(0), s.Delta)
	assert.True(t, s.RolledOver)
	assert.Equal(t, int64(100), store.baseline(t, "A"))
	assert.True(t, store.lastUpdate(t, "A").Equal(day.Truncate(time.Millisecond)))

	// Same day, later.
	s, err = tr.Update(ctx, "A", 130, day.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(30), s.Delta)
	assert.False(t, s.RolledOver)
	assert.Equal(t, int64(100), store.baseline(t, "A"))

	// Next day.
	next := day.AddDate(0, 0, 1)
	s, err = tr.Update(ctx, "A", 150, next)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Delta)
	assert.True(t, s.RolledOver)
	assert.Equal(t, int64(150), store.baseline(t, "A"))
	assert.True(t, store.lastUpdate(t, "A").Equal(next))
}

func TestSameDayCallsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	_, err := tr.Update(ctx, "A", 10, day)
	require.NoError(t, err)
	writes := store.writes

	a, err := tr.Update(ctx, "A", 20, day.Add(time.Minute))
	require.NoError(t, err)
	b, err := tr.Update(ctx, "A", 25, day.Add(2*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, writes, store.writes)
	assert.Equal(t, int64(5), b.Delta-a.Delta)
}

func TestRolloverJustAfterMidnight(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	beforeMidnight := time.Date(2026, time.March, 14, 23, 59, 59, 0, time.Local)
	afterMidnight := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.Local)

	_, err := tr.Update(ctx, "A", 500, beforeMidnight.Add(-time.Hour))
	require.NoError(t, err)

	s, err := tr.Update(ctx, "A", 540, beforeMidnight)
	require.NoError(t, err)
	assert.Equal(t, int64(40), s.Delta)

	s, err = tr.Update(ctx, "A", 541, afterMidnight)
	require.NoError(t, err)
	assert.True(t, s.RolledOver)
	assert.Equal(t, int64(0), s.Delta)
	assert.Equal(t, int64(541), store.baseline(t, "A"))
}

func TestSkippedDaysRollOverOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	_, err := tr.Update(ctx, "A", 1, day)
	require.NoError(t, err)

	later := day.AddDate(0, 0, 5)
	s, err := tr.Update(ctx, "A", 90, later)
	require.NoError(t, err)
	assert.True(t, s.RolledOver)
	assert.Equal(t, int64(0), s.Delta)

	s, err = tr.Update(ctx, "A", 95, later.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, s.RolledOver)
	assert.Equal(t, int64(5), s.Delta)
}

func TestFetchFailureGivesNegativeDelta(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	_, err := tr.Update(ctx, "A", 300, day)
	require.NoError(t, err)

	// A failed fetch reports 0 and is tracked like any other count.
	s, err := tr.Update(ctx, "A", 0, day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(-300), s.Delta)
	assert.Equal(t, int64(300), store.baseline(t, "A"))
}

func TestEntitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := tracker.New(store)

	_, err := tr.Update(ctx, "bilibili_a", 10, day)
	require.NoError(t, err)
	_, err = tr.Update(ctx, "xiaoyuzhou_b", 1000, day)
	require.NoError(t, err)

	a, err := tr.Update(ctx, "bilibili_a", 12, day.Add(time.Hour))
	require.NoError(t, err)
	b, err := tr.Update(ctx, "xiaoyuzhou_b", 990, day.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(2), a.Delta)
	assert.Equal(t, int64(-10), b.Delta)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		store := newFakeStore()
		store.getErr = stderrors.New("database is locked")

		_, err := tracker.New(store).Update(ctx, "A", 1, day)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrStoreUnavailable))
		assert.Zero(t, store.writes)
	})

	t.Run("write", func(t *testing.T) {
		store := newFakeStore()
		store.setErr = stderrors.New("read-only file system")

		s, err := tracker.New(store).Update(ctx, "A", 1, day)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrStoreUnavailable))
		assert.Equal(t, tracker.Sample{}, s)
	})

	t.Run("write not needed", func(t *testing.T) {
		store := newFakeStore()
		tr := tracker.New(store)
		_, err := tr.Update(ctx, "A", 1, day)
		require.NoError(t, err)

		store.setErr = stderrors.New("read-only file system")
		s, err := tr.Update(ctx, "A", 4, day.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), s.Delta)
	})
}

func TestEmptyKeyIsConfigurationError(t *testing.T) {
	store := newFakeStore()
	store.getErr = stderrors.New("must not be reached")

	_, err := tracker.New(store).Update(context.Background(), "", 1, day)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestCorruptValueReinitializes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.data[tracker.BaselineKey("A")] = "not-a-number"
	store.data[tracker.LastUpdateKey("A")] = strconv.FormatInt(day.UnixMilli(), 10)

	s, err := tracker.New(store).Update(ctx, "A", 77, day.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, s.RolledOver)
	assert.Equal(t, int64(0), s.Delta)
	assert.Equal(t, int64(77), store.baseline(t, "A"))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	now := time.Date(2026, time.October, 15, 0, 30, 0, 0, loc)

	start := tracker.StartOfDay(now)
	assert.Equal(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, loc), start)
	assert.Equal(t, loc, start.Location())
}
