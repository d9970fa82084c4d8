package visibility_test

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

	"github.com/slowtunes/slowtunes/internal/db"
	apperr "github.com/slowtunes/slowtunes/internal/errors"
	"github.com/slowtunes/slowtunes/internal/repository"
	"github.com/slowtunes/slowtunes/internal/visibility"
)

type recordingModerator struct {
	alerts []struct{ matchID, reporterID uint64 }
}

func (m *recordingModerator) AlertModerator(_ context.Context, matchID, reporterID uint64) error {
	m.alerts = append(m.alerts, struct{ matchID, reporterID uint64 }{matchID, reporterID})
	return nil
}

func setup(t *testing.T) (*visibility.StateMachine, *repository.MatchRepository, *recordingModerator) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.Match{}, &db.Like{}))

	matches := repository.NewMatchRepository(database)
	likes := repository.NewLikeRepository(database)
	moderator := &recordingModerator{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return visibility.New(matches, likes, moderator, log), matches, moderator
}

const (
	owner    = uint64(10)
	stranger = uint64(20)
)

func TestTogglePrivateByOwner(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	private, err := sm.TogglePrivate(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.False(t, private, "first toggle shares the tune")

	private, err = sm.TogglePrivate(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.True(t, private, "second toggle hides it again")
}

func TestTogglePrivateUnauthorized(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	_, err = sm.TogglePrivate(ctx, m.ID, stranger)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := matches.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrivate, "failed toggle must not mutate state")
}

// TestTogglePrivateOnForbiddenMatch: the owner may still flip the flag, but
// the match stays out of public browsing while forbidden.
func TestTogglePrivateOnForbiddenMatch(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)
	require.NoError(t, matches.SetForbidden(ctx, m.ID, true))

	private, err := sm.TogglePrivate(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.False(t, private)

	ids, err := matches.EligibleIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "forbidden overrides public")
}

func TestReportAlertsModerator(t *testing.T) {
	ctx := context.Background()
	sm, matches, moderator := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	require.NoError(t, sm.Report(ctx, m.ID, stranger))
	require.Len(t, moderator.alerts, 1)
	assert.Equal(t, m.ID, moderator.alerts[0].matchID)
	assert.Equal(t, stranger, moderator.alerts[0].reporterID)
}

func TestReportAlreadyForbidden(t *testing.T) {
	ctx := context.Background()
	sm, matches, moderator := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)
	require.NoError(t, matches.SetForbidden(ctx, m.ID, true))

	err = sm.Report(ctx, m.ID, stranger)
	assert.ErrorIs(t, err, apperr.ErrAlreadyForbidden)
	assert.Empty(t, moderator.alerts, "duplicate report must not reach the moderator")
}

func TestReportMissingMatch(t *testing.T) {
	ctx := context.Background()
	sm, _, _ := setup(t)

	err := sm.Report(ctx, 404, stranger)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolveReportBothDirections(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	require.NoError(t, sm.ResolveReport(ctx, m.ID, true))
	got, err := matches.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsForbidden)

	require.NoError(t, sm.ResolveReport(ctx, m.ID, false))
	got, err = matches.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsForbidden)
}

// TestResolveReportDeclineOnCleanMatch declines a report against a match
// that was never forbidden. The verdict writes the value already stored,
// which must read as success, not as a missing match.
func TestResolveReportDeclineOnCleanMatch(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	require.NoError(t, sm.ResolveReport(ctx, m.ID, false))

	got, err := matches.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsForbidden)
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()
	sm, matches, _ := setup(t)

	m, err := matches.Insert(ctx, "fp", "a", owner)
	require.NoError(t, err)

	liked, err := sm.ToggleLike(ctx, m.ID, stranger)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = sm.ToggleLike(ctx, m.ID, stranger)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestToggleLikeMissingMatch(t *testing.T) {
	ctx := context.Background()
	sm, _, _ := setup(t)

	_, err := sm.ToggleLike(ctx, 404, stranger)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
