//go:build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("COLIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("COLIT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedAnnouncement(t *testing.T, pool *pgxpool.Pool, kind announcement.Kind) *announcement.Announcement {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := &announcement.Announcement{
		ID:            uuid.New(),
		PosterID:      "poster-" + uuid.NewString(),
		Kind:          kind,
		DepartureCity: "Paris",
		ArrivalCity:   "Dakar",
		Date:          now.Add(72 * time.Hour),
		WeightKg:      5,
		Status:        announcement.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, NewAnnouncementRepository(pool).Create(context.Background(), a))
	return a
}

func newSpace(a *announcement.Announcement, senderID, gpID string) *colispace.ColiSpace {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &colispace.ColiSpace{
		ID:             uuid.New(),
		AnnouncementID: a.ID,
		SenderID:       senderID,
		GPID:           gpID,
		Status:         colispace.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestIntegration_AnnouncementRoundTrip(t *testing.T) {
	pool := testPool(t)
	repo := NewAnnouncementRepository(pool)
	ctx := context.Background()
	a := seedAnnouncement(t, pool, announcement.KindGPOffer)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.PosterID, got.PosterID)
	assert.Nil(t, got.ReceiverContact)

	ok, err := repo.AdvanceStatus(ctx, a.ID, announcement.StatusTaken, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.AdvanceStatus(ctx, a.ID, announcement.StatusTaken, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_GetOrCreateIsExactlyOnce(t *testing.T) {
	pool := testPool(t)
	repo := NewColiSpaceRepository(pool)
	a := seedAnnouncement(t, pool, announcement.KindGPOffer)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]struct{}{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp := newSpace(a, "sender-1", a.PosterID)
			got, isNew, err := repo.GetOrCreate(ctx, sp, colispace.SeedTimeline(sp.ID, sp.CreatedAt))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[got.ID] = struct{}{}
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	for id := range ids {
		steps, err := repo.ListSteps(ctx, id)
		require.NoError(t, err)
		assert.Len(t, steps, len(colispace.Definitions()))
	}
}

func TestIntegration_CompleteStepCAS(t *testing.T) {
	pool := testPool(t)
	repo := NewColiSpaceRepository(pool)
	a := seedAnnouncement(t, pool, announcement.KindGPOffer)
	ctx := context.Background()
	sp := newSpace(a, "sender-2", a.PosterID)
	_, _, err := repo.GetOrCreate(ctx, sp, colispace.SeedTimeline(sp.ID, sp.CreatedAt))
	require.NoError(t, err)

	by := "sender-2"
	ok, err := repo.CompleteStep(ctx, sp.ID, colispace.StepValidated, &by, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.CompleteStep(ctx, sp.ID, colispace.StepValidated, &by, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegration_PendingAttach(t *testing.T) {
	pool := testPool(t)
	repo := NewColiSpaceRepository(pool)
	a := seedAnnouncement(t, pool, announcement.KindSendRequest)
	ctx := context.Background()
	sp := newSpace(a, a.PosterID, "")
	_, isNew, err := repo.GetOrCreate(ctx, sp, colispace.SeedTimeline(sp.ID, sp.CreatedAt))
	require.NoError(t, err)
	assert.True(t, isNew)

	pending, err := repo.FindPending(ctx, a.ID, a.PosterID)
	require.NoError(t, err)
	require.NotNil(t, pending)

	ok, err := repo.AttachGP(ctx, pending.ID, "gp-a", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.AttachGP(ctx, pending.ID, "gp-b", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegration_FeedDeliversMessages(t *testing.T) {
	pool := testPool(t)
	repo := NewColiSpaceRepository(pool)
	a := seedAnnouncement(t, pool, announcement.KindGPOffer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sp := newSpace(a, "sender-3", a.PosterID)
	_, _, err := repo.GetOrCreate(ctx, sp, colispace.SeedTimeline(sp.ID, sp.CreatedAt))
	require.NoError(t, err)

	feed := NewFeed(pool, repo, zerolog.Nop())
	go func() { _ = feed.Run(ctx) }()
	sub, err := feed.Subscribe(ctx, sp.ID)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(200 * time.Millisecond)

	msg := &colispace.Message{ID: uuid.New(), ColiSpaceID: sp.ID, UserID: "sender-3", Text: "salut", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateMessage(ctx, msg))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, colispace.ChangeMessageInserted, ev.Kind)
		require.NotNil(t, ev.Message)
		assert.Equal(t, msg.ID, ev.Message.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
}
