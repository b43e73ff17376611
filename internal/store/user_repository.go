package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/maumercado/jobrunner-go/internal/task"
)

// UserRepository persists user accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Returns task.ErrUsernameTaken if the username
// already exists.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", u.Username).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return task.ErrUsernameTaken
	}

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, task.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by unique username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, task.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdateProfile changes username and/or password hash. Empty values leave
// the field untouched. Returns task.ErrUsernameTaken if the new name belongs
// to a different user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, username, hashedPassword string) (*User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if username != "" && username != u.Username {
		var count int64
		if err := r.db.WithContext(ctx).Model(&User{}).
			Where("username = ? AND id <> ?", username, id).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if count > 0 {
			return nil, task.ErrUsernameTaken
		}
		u.Username = username
	}
	if hashedPassword != "" {
		u.HashedPassword = hashedPassword
	}

	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// SetQuota replaces a user's admission budget.
func (r *UserRepository) SetQuota(ctx context.Context, id uint, quota int) error {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("task_quota", quota)
	if res.Error != nil {
		return fmt.Errorf("failed to set quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrUserNotFound
	}
	return nil
}

// Promote grants the admin flag to a user.
func (r *UserRepository) Promote(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("is_admin", true)
	if res.Error != nil {
		return fmt.Errorf("failed to promote user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrUserNotFound
	}
	return nil
}

// PromoteByUsername grants the admin flag by username. Used by the
// promote-admin operator tool.
func (r *UserRepository) PromoteByUsername(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).
		Update("is_admin", true)
	if res.Error != nil {
		return fmt.Errorf("failed to promote user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	var users []*User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
