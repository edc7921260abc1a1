package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// UsageMutation receives the persisted window and returns the window to store. Returning an
// error aborts the update and leaves the stored window untouched.
type UsageMutation func(current models.UsageWindow) (models.UsageWindow, error)

// UserRepository exposes account lookups and the persisted evaluation usage window.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetUsage(ctx context.Context, userID uint) (models.UsageWindow, error)
	UpdateUsage(ctx context.Context, userID uint, mutate UsageMutation) (models.UsageWindow, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a gorm backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetUsage(ctx context.Context, userID uint) (models.UsageWindow, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return models.UsageWindow{}, err
	}
	return user.Usage, nil
}

// UpdateUsage applies mutate while holding a row lock on the user so concurrent attempts
// from the same account serialise on the window.
func (r *userRepository) UpdateUsage(ctx context.Context, userID uint, mutate UsageMutation) (models.UsageWindow, error) {
	var updated models.UsageWindow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return err
		}

		next, err := mutate(user.Usage)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"evaluation_window_start": next.WindowStart,
				"evaluation_count":        next.Count,
			}).Error; err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return models.UsageWindow{}, err
	}
	return updated, nil
}
