package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/stockflow/internal/patch"
)

func openStore(t *testing.T) *DraftStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "drafts.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDraft(description string) *patch.Draft {
	d := patch.NewDraft(description, "v1")
	d.AddChange(patch.Change{
		Op:     patch.OpUpdateParameter,
		Symbol: "k",
		Data:   map[string]any{"value": 0.8},
		Reason: "tuning",
	})
	return d
}

func TestDraftStore_CreateGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	d := sampleDraft("first")
	require.NoError(t, s.Create(ctx, d))

	stored, err := s.Get(ctx, d.DraftID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, d.DraftID, stored.Draft.DraftID)
	assert.Equal(t, "first", stored.Draft.Description)
	require.Len(t, stored.Draft.Changes, 1)
	assert.Equal(t, patch.OpUpdateParameter, stored.Draft.Changes[0].Op)
	assert.Equal(t, 0.8, stored.Draft.Changes[0].Data["value"])
}

func TestDraftStore_GetMissing(t *testing.T) {
	s := openStore(t)

	_, err := s.Get(context.Background(), "draft_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDraftStore_UpdateBumpsVersion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	d := sampleDraft("evolving")
	require.NoError(t, s.Create(ctx, d))

	d.AddChange(patch.Change{Op: patch.OpRemoveScenario, Symbol: "baseline"})
	require.NoError(t, s.Update(ctx, d, 1))

	stored, err := s.Get(ctx, d.DraftID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Len(t, stored.Draft.Changes, 2)
}

func TestDraftStore_UpdateStaleVersion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	d := sampleDraft("contended")
	require.NoError(t, s.Create(ctx, d))
	require.NoError(t, s.Update(ctx, d, 1))

	err := s.Update(ctx, d, 1)
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestDraftStore_UpdateMissing(t *testing.T) {
	s := openStore(t)

	err := s.Update(context.Background(), sampleDraft("ghost"), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDraftStore_Delete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	d := sampleDraft("doomed")
	require.NoError(t, s.Create(ctx, d))
	require.NoError(t, s.Delete(ctx, d.DraftID))

	_, err := s.Get(ctx, d.DraftID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Delete(ctx, d.DraftID), ErrNotFound)
}

func TestDraftStore_ListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	older := sampleDraft("older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleDraft("newer")

	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	drafts, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "newer", drafts[0].Draft.Description)
	assert.Equal(t, "older", drafts[1].Draft.Description)
}

func TestDraftStore_ReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drafts.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	d := sampleDraft("durable")
	require.NoError(t, s.Create(ctx, d))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	stored, err := reopened.Get(ctx, d.DraftID)
	require.NoError(t, err)
	assert.Equal(t, "durable", stored.Draft.Description)
}
