package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ads-manager/database"
	"ads-manager/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/logger"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{CallerKey: "file", TimeKey: "timestamp", CallerSkip: 1})
	os.Exit(m.Run())
}

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := database.Open(filepath.Join(t.TempDir(), "ads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seedUser(t *testing.T, conn *sqlx.DB, login string) int {
	t.Helper()
	id, err := database.SeedUser(context.Background(), conn, login, "secret", "Test "+login, bcrypt.MinCost)
	require.NoError(t, err)
	return id
}

func newAd(userID, statusID int, title string, day int) *models.Ad {
	return &models.Ad{
		UserID:     userID,
		Title:      title,
		PostDate:   time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		CityID:     1,
		CategoryID: 2,
		TypeID:     1,
		StatusID:   statusID,
		Price:      decimal.RequireFromString("100.50"),
	}
}

func TestUserRepository(t *testing.T) {
	conn := openDB(t)
	id := seedUser(t, conn, "alice")
	repo := NewUserRepository(conn)
	ctx := context.Background()

	user, err := repo.FindByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Test alice", user.FullName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret")))

	_, err = repo.FindByLogin(ctx, "ALICE")
	assert.ErrorIs(t, err, ErrNotFound)

	byID, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Login)
}

func TestLookupRepositorySeeded(t *testing.T) {
	repo := NewLookupRepository(openDB(t))
	ctx := context.Background()

	statuses, err := repo.Statuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Lookup{{ID: 1, Name: "Active"}, {ID: 2, Name: "Completed"}}, statuses)

	cities, err := repo.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Lookup{
		{ID: 3, Name: "Kazan"},
		{ID: 1, Name: "Moscow"},
		{ID: 4, Name: "Novosibirsk"},
		{ID: 2, Name: "Saint Petersburg"},
	}, cities)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 4)
	assert.Equal(t, "Electronics", categories[0].Name)
	assert.Equal(t, "Transport", categories[3].Name)

	types, err := repo.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Lookup{{ID: 2, Name: "Purchase"}, {ID: 3, Name: "Rent"}, {ID: 1, Name: "Sale"}}, types)
}

func TestAdRepositorySaveAndFind(t *testing.T) {
	conn := openDB(t)
	userID := seedUser(t, conn, "alice")
	repo := NewAdRepository(conn)
	ctx := context.Background()

	ad := newAd(userID, 1, "Bike", 1)
	require.NoError(t, repo.Save(ctx, ad, nil))
	require.NotZero(t, ad.ID)

	found, err := repo.FindByID(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bike", found.Title)
	assert.True(t, ad.Price.Equal(found.Price))
	assert.Nil(t, found.Profit)
	assert.Nil(t, found.ImagePath)
	assert.True(t, ad.PostDate.Equal(found.PostDate))

	profit := int64(40)
	found.Title = "Road bike"
	found.StatusID = 2
	found.Profit = &profit
	require.NoError(t, repo.Save(ctx, found, nil))

	updated, err := repo.FindByID(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, "Road bike", updated.Title)
	require.NotNil(t, updated.Profit)
	assert.Equal(t, int64(40), *updated.Profit)
}

func TestAdRepositorySaveRollsBackOnAfterError(t *testing.T) {
	conn := openDB(t)
	userID := seedUser(t, conn, "alice")
	repo := NewAdRepository(conn)
	ctx := context.Background()

	failed := assert.AnError
	err := repo.Save(ctx, newAd(userID, 1, "Bike", 1), func(ctx context.Context, tx sqlx.ExtContext) error {
		return failed
	})
	assert.ErrorIs(t, err, failed)

	rows, err := repo.ListRows(ctx, RowQuery{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAdRepositoryUpdateMissing(t *testing.T) {
	conn := openDB(t)
	repo := NewAdRepository(conn)
	ad := newAd(1, 1, "Ghost", 1)
	ad.ID = 99

	assert.ErrorIs(t, repo.Save(context.Background(), ad, nil), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), 99, nil), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateImagePath(context.Background(), 99, nil), ErrNotFound)
}

func TestAdRepositoryImagePathAndDelete(t *testing.T) {
	conn := openDB(t)
	userID := seedUser(t, conn, "alice")
	repo := NewAdRepository(conn)
	ctx := context.Background()

	ad := newAd(userID, 1, "Bike", 1)
	require.NoError(t, repo.Save(ctx, ad, nil))

	path := "ads/ad_1.png"
	require.NoError(t, repo.UpdateImagePath(ctx, ad.ID, &path))
	found, err := repo.FindByID(ctx, ad.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ImagePath)
	assert.Equal(t, path, *found.ImagePath)

	require.NoError(t, repo.Delete(ctx, ad.ID, nil))
	_, err = repo.FindByID(ctx, ad.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRowsScopesAndOrder(t *testing.T) {
	conn := openDB(t)
	alice := seedUser(t, conn, "alice")
	bob := seedUser(t, conn, "bob")
	repo := NewAdRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newAd(alice, 1, "Old", 1), nil))
	require.NoError(t, repo.Save(ctx, newAd(alice, 2, "Sold", 5), nil))
	require.NoError(t, repo.Save(ctx, newAd(bob, 1, "Bob's", 3), nil))

	all, err := repo.ListRows(ctx, RowQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Sold", "Bob's", "Old"}, []string{all[0].Title, all[1].Title, all[2].Title})
	assert.Equal(t, "Moscow", all[0].City)
	assert.Equal(t, "Transport", all[0].Category)
	assert.Equal(t, "Sale", all[0].Type)
	assert.Equal(t, "Completed", all[0].Status)
	assert.Equal(t, "alice", all[0].OwnerLogin)

	mine, err := repo.ListRows(ctx, RowQuery{OwnerID: alice})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	active, err := repo.ListRows(ctx, RowQuery{OwnerID: alice, StatusID: 1})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Old", active[0].Title)
}

func TestProfitRepositoryAddAndRecompute(t *testing.T) {
	conn := openDB(t)
	userID := seedUser(t, conn, "alice")
	ads := NewAdRepository(conn)
	profits := NewProfitRepository(conn)
	ctx := context.Background()

	total, err := profits.Total(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, profits.Add(ctx, conn, userID, 50))
	require.NoError(t, profits.Add(ctx, conn, userID, 25))
	total, err = profits.Total(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), total)

	p1, p2 := int64(30), int64(12)
	sold := newAd(userID, 2, "Sold", 1)
	sold.Profit = &p1
	other := newAd(userID, 2, "Also sold", 2)
	other.Profit = &p2
	require.NoError(t, ads.Save(ctx, sold, nil))
	require.NoError(t, ads.Save(ctx, other, nil))
	require.NoError(t, ads.Save(ctx, newAd(userID, 1, "Active", 3), nil))

	got, err := profits.Recompute(ctx, conn, userID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	again, err := profits.Recompute(ctx, conn, userID, 2)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	entry, err := profits.Find(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.Total)
}
