package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	s, err := Open(t.TempDir(),
		WithLogger(quietLogger),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%02d", n)
		}))
	require.NoError(t, err)
	return s
}

func TestStore_CreateAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	late, err := s.CreateEvent(ctx, models.Draft{Title: "Late", Start: at(14, 0), End: at(15, 0)})
	require.NoError(t, err)
	early, err := s.CreateEvent(ctx, models.Draft{
		Title: "Early", Start: at(9, 0), End: at(10, 0),
		Contact: &models.Contact{Email: "jane@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-01", late.ID)
	assert.Equal(t, models.StatusConfirmed, late.Status)
	assert.Equal(t, models.SourceLocal, late.Source)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, early.ID, events[0].ID, "ordered by start")
	assert.True(t, at(9, 0).Equal(events[0].Start))
	require.NotNil(t, events[0].Contact)
	assert.Equal(t, "jane@example.com", events[0].Contact.Email)
}

func TestStore_CreateRejectsInvalidRange(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateEvent(context.Background(), models.Draft{Start: at(10, 0), End: at(9, 0)})
	assert.Error(t, err)

	events, err := s.Events(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_UpdateEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev, err := s.CreateEvent(ctx, models.Draft{Title: "Cut", Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)

	got, err := s.UpdateEvent(ctx, ev.ID, models.PatchFromRange(models.Range{Start: at(10, 15), End: at(11, 15)}))
	require.NoError(t, err)
	assert.Equal(t, "Cut", got.Title)

	stored, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, at(10, 15).Equal(stored.Start))
	assert.True(t, at(11, 15).Equal(stored.End))

	end := at(8, 0)
	_, err = s.UpdateEvent(ctx, ev.ID, models.Patch{End: &end})
	assert.Error(t, err, "update may not break end > start")

	_, err = s.UpdateEvent(ctx, "missing", models.PatchFromRange(models.Range{Start: at(1, 0), End: at(2, 0)}))
	assert.ErrorIs(t, err, conflict.ErrEventNotFound)
}

func TestStore_DeleteEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev, err := s.CreateEvent(ctx, models.Draft{Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(ctx, ev.ID))
	assert.ErrorIs(t, s.DeleteEvent(ctx, ev.ID), conflict.ErrEventNotFound)
	_, err = s.Get(ctx, ev.ID)
	assert.ErrorIs(t, err, conflict.ErrEventNotFound)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir, WithLogger(quietLogger))
	require.NoError(t, err)
	ev, err := first.CreateEvent(ctx, models.Draft{Title: "Kept", Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	assert.Len(t, ev.ID, 36, "default ids are UUIDs")

	second, err := Open(dir, WithLogger(quietLogger))
	require.NoError(t, err)
	events, err := second.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Kept", events[0].Title)
}

func TestStore_SkipsCorruptRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.CreateEvent(ctx, models.Draft{Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Path(), "broken"), []byte("{not json"), 0o644))

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStore_Put(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Put(models.Event{Start: at(9, 0), End: at(10, 0)}))
	require.NoError(t, s.Put(models.Event{ID: "fixed", Start: at(9, 0), End: at(10, 0)}))

	ev, err := s.Get(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", ev.ID)
}

func TestStore_RejectsIDsOutsideStore(t *testing.T) {
	root := t.TempDir()
	s, err := Open(filepath.Join(root, "events"), WithLogger(quietLogger))
	require.NoError(t, err)
	ctx := context.Background()

	outside := filepath.Join(root, "victim")
	require.NoError(t, os.WriteFile(outside, []byte(`{"title":"victim"}`), 0o644))

	for _, id := range []string{"../victim", "..", ".", `..\victim`, "a/b", "nul\x00"} {
		t.Run(id, func(t *testing.T) {
			_, err := s.Get(ctx, id)
			assert.ErrorIs(t, err, conflict.ErrEventNotFound)
			assert.ErrorIs(t, err, ErrInvalidID)

			start := at(11, 0)
			_, err = s.UpdateEvent(ctx, id, models.Patch{Start: &start})
			assert.ErrorIs(t, err, ErrInvalidID)

			assert.ErrorIs(t, s.DeleteEvent(ctx, id), ErrInvalidID)
			assert.ErrorIs(t, s.Put(models.Event{ID: id, Start: at(9, 0), End: at(10, 0)}), ErrInvalidID)
		})
	}

	data, err := os.ReadFile(outside)
	require.NoError(t, err, "file outside the store must survive")
	assert.JSONEq(t, `{"title":"victim"}`, string(data))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/events")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "events"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, home))

	got, err = ExpandPath("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", got)
}

var quietLogger = logging.NewSlogAdapter(slog.New(slog.DiscardHandler))
