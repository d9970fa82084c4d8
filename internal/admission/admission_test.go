package admission_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slowtunes/slowtunes/internal/admission"
	"github.com/slowtunes/slowtunes/internal/db"
	"github.com/slowtunes/slowtunes/internal/repository"
)

type fakeSnapshotter map[uint64]int

func (f fakeSnapshotter) InFlightByUser() map[uint64]int { return f }

func setupController(t *testing.T, limit int) (*admission.Controller, *repository.CounterRepository) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.QueueCounter{}))

	counters := repository.NewCounterRepository(database)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return admission.New(counters, limit, log), counters
}

func TestTryAdmitAndRelease(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := setupController(t, 2)

	ok, err := ctrl.TryAdmit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ctrl.TryAdmit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ctrl.TryAdmit(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "third admit must be denied at limit 2")

	ctrl.Release(ctx, 1)

	ok, err = ctrl.TryAdmit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestReconcileClampsLeakedSlots simulates a crashed worker: the durable
// counter says 2 in flight but the queue only knows about 0. The sweep must
// clamp the counter down so the user can submit again.
func TestReconcileClampsLeakedSlots(t *testing.T) {
	ctx := context.Background()
	ctrl, counters := setupController(t, 2)

	for i := 0; i < 2; i++ {
		ok, err := ctrl.TryAdmit(ctx, 9)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := ctrl.TryAdmit(ctx, 9)
	require.NoError(t, err)
	require.False(t, ok)

	reconCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl.StartReconciler(reconCtx, fakeSnapshotter{}, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		count, err := counters.Get(ctx, 9)
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond, "leaked counter should be clamped to the live in-flight count")

	ok, err = ctrl.TryAdmit(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestReconcileLeavesLiveSlotsAlone checks the sweep never clamps a counter
// that matches the queue's live view.
func TestReconcileLeavesLiveSlotsAlone(t *testing.T) {
	ctx := context.Background()
	ctrl, counters := setupController(t, 2)

	ok, err := ctrl.TryAdmit(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)

	reconCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl.StartReconciler(reconCtx, fakeSnapshotter{5: 1}, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	count, err := counters.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
