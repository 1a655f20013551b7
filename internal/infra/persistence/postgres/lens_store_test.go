package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensvault/lensvault/core/record"
)

func TestLensStoreNilPoolGuards(t *testing.T) {
	store := NewLensStore(nil)
	ctx := context.Background()

	err := store.Save(ctx, record.LensRecord{UUID: "ab12"}) //nolint:exhaustruct
	require.Error(t, err)

	_, _, err = store.Get(ctx, "ab12")
	require.Error(t, err)

	_, err = store.ListByUser(ctx, "alice")
	require.Error(t, err)

	_, err = store.Count(ctx)
	require.Error(t, err)
}

func TestLensStoreSaveRequiresUUID(t *testing.T) {
	store := NewLensStore(nil)
	err := store.Save(context.Background(), record.LensRecord{UUID: "   "}) //nolint:exhaustruct
	require.Error(t, err)
	require.Contains(t, err.Error(), "uuid")
}
