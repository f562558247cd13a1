package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"competesync/pkg/paginator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	items := []paginator.RawItem{
		{"id": "a", "name": "Open A"},
		{"id": float64(42), "name": "Open B"},
	}

	store.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	n, err := store.Upsert(ctx, "competitions", items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first := storedRows(t, store, "competitions")

	store.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	n, err = store.Upsert(ctx, "competitions", items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, first, storedRows(t, store, "competitions"))
	assert.Len(t, first, 2)
}

func TestUpsertTouchesOnlyChangedRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	_, err := store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "a", "v": "1"}, {"id": "b", "v": "1"}})
	require.NoError(t, err)

	store.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	_, err = store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "a", "v": "1"}, {"id": "b", "v": "2"}})
	require.NoError(t, err)

	rows := storedRows(t, store, "competitions")
	assert.Equal(t, "2024-01-01T00:00:00Z", rows["a"][1])
	assert.Equal(t, "2024-02-01T00:00:00Z", rows["b"][1])
	assert.JSONEq(t, `{"id":"b","v":"2"}`, rows["b"][0])
}

func TestLargeNumericIdentifiersStayDistinct(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.Upsert(ctx, "participants", []paginator.RawItem{
		{"id": json.Number("9007199254740993")},
		{"id": json.Number("9007199254740992")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := store.List(ctx, "participants", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, json.Number("9007199254740993"), items[0]["id"])
	assert.Equal(t, json.Number("9007199254740992"), items[1]["id"])
}

// storedRows returns id -> [data, updated_at] straight from the items table
func storedRows(t *testing.T, store *Store, collection string) map[string][2]string {
	t.Helper()
	rows, err := store.db.Query(`select id, data, updated_at from items where collection = ?`, collection)
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[string][2]string)
	for rows.Next() {
		var id, data, updated string
		require.NoError(t, rows.Scan(&id, &data, &updated))
		out[id] = [2]string{data, updated}
	}
	require.NoError(t, rows.Err())
	return out
}

func TestUpsertReplacesData(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "a", "name": "old"}})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "a", "name": "new"}})
	require.NoError(t, err)

	items, err := store.List(ctx, "competitions", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0]["name"])
}

func TestUpsertSkipsItemsWithoutIdentifier(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.Upsert(ctx, "participants", []paginator.RawItem{
		{"participantId": "p1"},
		{"name": "nobody"},
		{"id": ""},
		{"uuid": "u-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollectionsAreSeparate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "1"}})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "participants", []paginator.RawItem{{"id": "1"}, {"id": "2"}})
	require.NoError(t, err)

	count, err := store.Count(ctx, "competitions")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.Count(ctx, "participants")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "competitions", []paginator.RawItem{
		{"id": "c", "startDate": "2024-03-01"},
		{"id": "a", "startDate": "2024-01-01"},
		{"id": "b", "startDate": "2024-02-01"},
	})
	require.NoError(t, err)

	inserted, err := store.List(ctx, "competitions", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(inserted))

	byDate, err := store.List(ctx, "competitions", "startDate")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(byDate))
}

func TestListEmptyCollection(t *testing.T) {
	store := openTestStore(t)

	items, err := store.List(context.Background(), "competitions", "")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "app.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "competitions", []paginator.RawItem{{"id": "x"}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx, "competitions")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAndLastRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	last, err := store.LastRun(ctx, "participants", "evt-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first, err := store.RecordRun(ctx, Run{
		Collection: "participants", Resource: "evt-1", Reason: "exhausted",
		Count: 10, Pages: 2, StartedAt: start, FinishedAt: start.Add(time.Second),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = store.RecordRun(ctx, Run{
		Collection: "participants", Resource: "evt-1", Reason: "failed", Error: "boom",
		Count: 3, Pages: 1, StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Second),
	})
	require.NoError(t, err)

	last, err = store.LastRun(ctx, "participants", "evt-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "failed", last.Reason)
	assert.Equal(t, "boom", last.Error)
	assert.Equal(t, 3, last.Count)
	assert.True(t, last.FinishedAt.Equal(start.Add(time.Hour+time.Second)))

	other, err := store.LastRun(ctx, "participants", "evt-2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "participants.json")

	require.NoError(t, ExportJSON(path, []paginator.RawItem{{"id": "1", "clubName": "Tigers & Dragons <HQ>"}, {"id": "2"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Total        int              `json:"total_participants"`
		Participants []map[string]any `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Total)
	assert.Len(t, decoded.Participants, 2)
	assert.Contains(t, string(data), "Tigers & Dragons <HQ>")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExportJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	require.NoError(t, ExportJSON(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_participants": 0, "participants": []}`, string(data))
}

func ids(items []paginator.RawItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item["id"].(string))
	}
	return out
}
