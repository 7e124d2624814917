package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/testutil"
)

func TestPostgresStore_AppendAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	detail, _ := json.Marshal(map[string]any{"reason": "trap"})
	require.NoError(t, store.Append(ctx, &Record{
		ID: "00000000-0000-4000-8000-000000000001", Kind: KindRiskEvent, Event: "trap_hit",
		PartnerID: "acme", UserID: "u1", Score: 80, Detail: detail, CreatedAt: base,
	}))
	require.NoError(t, store.Append(ctx, &Record{
		ID: "00000000-0000-4000-8000-000000000002", Kind: KindFileAlert, Event: "unauthorized_access",
		FileID: "file_001", CreatedAt: base.Add(time.Second),
	}))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, KindFileAlert, all[0].Kind)
	assert.Empty(t, all[0].PartnerID)
	assert.JSONEq(t, "{}", string(all[0].Detail))

	acme, err := store.List(ctx, Filter{PartnerID: "acme"})
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, 80, acme[0].Score)
	assert.JSONEq(t, `{"reason":"trap"}`, string(acme[0].Detail))
}
