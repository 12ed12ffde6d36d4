package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/utils"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestUserRepository_UpsertSealsPassword(t *testing.T) {
	db := openTestDB(t)
	sealer, err := utils.NewSealer(testKey)
	require.NoError(t, err)
	repo := NewUserRepository(db, sealer)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{
		ID:       7,
		Username: "2021000001",
		Password: "hunter2",
		Push:     true,
		TierMap:  models.TierMap{"a": models.TierNew},
	}))

	var raw models.User
	require.NoError(t, db.First(&raw, 7).Error)
	require.NotEqual(t, "hunter2", raw.Password)
	require.True(t, strings.HasPrefix(raw.Password, "sb1:"))

	user, err := repo.FindByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "hunter2", user.Password)
	require.Equal(t, models.TierMap{"a": models.TierNew}, user.TierMap)
}

func TestUserRepository_UpsertOverwrites(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 7, Username: "old", Password: "p1", Push: false}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 7, Username: "new", Password: "p2", Push: true}))

	user, err := repo.FindByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "new", user.Username)
	require.Equal(t, "p2", user.Password)
	require.True(t, user.Push)
}

func TestUserRepository_PushAndTierMap(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 1, Username: "a", Password: "p", Push: true}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 2, Username: "b", Password: "p", Push: true}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 3, Username: "c", Password: "p", Push: false}))

	require.NoError(t, repo.SetPush(ctx, 2, false))
	require.NoError(t, repo.SaveTierMap(ctx, 1, models.TierMap{"x": models.TierHour}))

	users, err := repo.ListPushEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, int64(1), users[0].ID)
	require.Equal(t, models.TierMap{"x": models.TierHour}, users[0].TierMap)
}

func TestUserRepository_ReadsLegacyTierMap(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 1, Username: "a", Password: "p", Push: true}))
	require.NoError(t, db.Exec(`UPDATE users SET tier_map = ? WHERE id = ?`, `{"x":true,"y":"day"}`, 1).Error)

	user, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.TierMap{"x": models.TierNew, "y": models.TierDay}, user.TierMap)
}
