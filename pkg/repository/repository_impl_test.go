package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billdesk/pkg/db/option"
	"github.com/smallbiznis/billdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID    int64 `gorm:"primaryKey"`
	OrgID int64
	Name  string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, org_id INTEGER NOT NULL, name TEXT NOT NULL)`).Error)
	return db
}

func TestStoreScopesByFilter(t *testing.T) {
	ctx := context.Background()
	store := ProvideStore[widget](setupTestDB(t))

	require.NoError(t, store.BatchCreate(ctx, []*widget{
		{ID: 1, OrgID: 10, Name: "Alpha"},
		{ID: 2, OrgID: 10, Name: "Beta"},
		{ID: 3, OrgID: 20, Name: "Alpine"},
	}))

	found, err := store.FindOne(ctx, &widget{ID: 3, OrgID: 10})
	require.NoError(t, err)
	assert.Nil(t, found)

	list, err := store.Find(ctx, &widget{OrgID: 10},
		option.WithSearch("AL", "name"),
		option.WithSortBy("id DESC"),
		option.ApplyPagination(pagination.Pagination{Page: 1, Limit: 10}),
	)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alpha", list[0].Name)

	count, err := store.Count(ctx, &widget{OrgID: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStoreUpdateAndDeleteReportRows(t *testing.T) {
	ctx := context.Background()
	store := ProvideStore[widget](setupTestDB(t))
	require.NoError(t, store.Create(ctx, &widget{ID: 1, OrgID: 10, Name: "Alpha"}))

	rows, err := store.Update(ctx, &widget{ID: 1, OrgID: 20}, map[string]interface{}{"name": "Nope"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = store.Update(ctx, &widget{ID: 1, OrgID: 10}, map[string]interface{}{"name": "Gamma"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = store.Delete(ctx, &widget{ID: 1, OrgID: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}
