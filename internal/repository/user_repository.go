package repository

import (
	"context"
	"fmt"

	"github.com/YouXam/ucloud-bot/internal/database"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository is a GORM implementation of UserRepository. Passwords are
// sealed on the way in and opened on the way out.
type GormUserRepository struct {
	db     *gorm.DB
	sealer utils.Sealer
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB, sealer utils.Sealer) UserRepository {
	if sealer == nil {
		sealer = utils.PlainSealer{}
	}
	return &GormUserRepository{db: db, sealer: sealer}
}

// Upsert creates or overwrites a user
func (r *GormUserRepository) Upsert(ctx context.Context, user *models.User) error {
	sealed, err := r.sealer.Seal(user.Password)
	if err != nil {
		return fmt.Errorf("failed to seal password: %w", err)
	}

	row := *user
	row.Password = sealed
	if row.TierMap == nil {
		row.TierMap = models.TierMap{}
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "password", "push", "tier_map", "updated_at"}),
		}).
		Create(&row).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	if err := r.open(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPushEnabled lists users with reminders on, ordered by id
func (r *GormUserRepository) ListPushEnabled(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Scopes(database.PushEnabled).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		if err := r.open(&users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// SetPush turns reminders on or off
func (r *GormUserRepository) SetPush(ctx context.Context, id int64, push bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("push", push).Error
}

// SaveTierMap replaces the stored tier map
func (r *GormUserRepository) SaveTierMap(ctx context.Context, id int64, tiers models.TierMap) error {
	if tiers == nil {
		tiers = models.TierMap{}
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("tier_map", tiers).Error
}

func (r *GormUserRepository) open(user *models.User) error {
	plain, err := r.sealer.Open(user.Password)
	if err != nil {
		return fmt.Errorf("failed to open password for user %d: %w", user.ID, err)
	}
	user.Password = plain
	if user.TierMap == nil {
		user.TierMap = models.TierMap{}
	}
	return nil
}
