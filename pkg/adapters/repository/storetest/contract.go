// Package storetest holds the behaviour every ports.LinkStore must share.
// Backend test files call Run with a factory returning an empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) ports.LinkStore

func Run(t *testing.T, newStore Factory) {
	t.Run("create and fetch", func(t *testing.T) { testCreateAndFetch(t, newStore(t)) })
	t.Run("duplicate token", func(t *testing.T) { testDuplicateToken(t, newStore(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("concurrent increments", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("concurrent creates", func(t *testing.T) { testConcurrentCreates(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("list newest first", func(t *testing.T) { testList(t, newStore(t)) })
}

func newLink(token string, createdAt time.Time) *domain.TrackerLink {
	return &domain.TrackerLink{
		Token:          token,
		DestinationURL: "https://example.com/" + token,
		CreatedAt:      createdAt,
	}
}

func testCreateAndFetch(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	link := newLink("aB3dE9fH", created)
	require.NoError(t, store.Create(ctx, link))
	assert.NotZero(t, link.ID)

	got, err := store.GetByToken(ctx, "aB3dE9fH")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, "https://example.com/aB3dE9fH", got.DestinationURL)
	assert.Equal(t, int64(0), got.ClickCount)
	assert.True(t, created.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)

	again, err := store.GetByToken(ctx, "aB3dE9fH")
	require.NoError(t, err)
	assert.Equal(t, got.ClickCount, again.ClickCount)

	byID, err := store.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "aB3dE9fH", byID.Token)

	exists, err := store.TokenExists(ctx, "aB3dE9fH")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testDuplicateToken(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newLink("dupe0001", time.Now())))

	err := store.Create(ctx, newLink("dupe0001", time.Now()))
	assert.ErrorIs(t, err, domain.ErrDuplicateToken)
}

func testNotFound(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()

	_, err := store.GetByToken(ctx, "missing1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.IncrementClicks(ctx, "missing1"), domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing1"), domain.ErrNotFound)

	exists, err := store.TokenExists(ctx, "missing1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testConcurrentIncrements(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newLink("hot00001", time.Now())))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.IncrementClicks(ctx, "hot00001")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.GetByToken(ctx, "hot00001")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.ClickCount)
}

func testConcurrentCreates(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Create(ctx, newLink("race0001", time.Now()))
		}()
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateToken):
			dup++
		default:
			t.Errorf("unexpected create error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one writer must win")
	assert.Equal(t, n-1, dup)
}

func testDelete(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()
	link := newLink("gone0001", time.Now())
	require.NoError(t, store.Create(ctx, link))

	require.NoError(t, store.Delete(ctx, "gone0001"))

	_, err := store.GetByToken(ctx, "gone0001")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByID(ctx, link.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	links, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	// The token is free again once the record is gone.
	require.NoError(t, store.Create(ctx, newLink("gone0001", time.Now())))
}

func testList(t *testing.T, store ports.LinkStore) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []int{0, 2, 1} {
		token := fmt.Sprintf("list%04d", i)
		require.NoError(t, store.Create(ctx, newLink(token, base.Add(time.Duration(offset)*time.Hour))))
	}

	links, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "list0001", links[0].Token)
	assert.Equal(t, "list0002", links[1].Token)
	assert.Equal(t, "list0000", links[2].Token)
}
