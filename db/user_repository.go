package db

import (
	"context"

	"github.com/fitpair/coachlink/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apiError "github.com/fitpair/coachlink/errors"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	UpdatePushToken(ctx context.Context, userID uint, token string) error
}

type userRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *GormDB) UserRepository {
	return &userRepo{db.DB}
}

func (r *userRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "could not create user")
	}
	return user, nil
}

func (r *userRepo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apiError.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not find user")
	}
	return &user, nil
}

func (r *userRepo) FindUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not find users")
	}
	return users, nil
}

func (r *userRepo) UpdatePushToken(ctx context.Context, userID uint, token string) error {
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("push_token", token).Error
	return errors.Wrap(err, "could not update push token")
}
