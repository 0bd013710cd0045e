package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	userrepo "github.com/learnhubhq/learnhub-backend/internal/data/repos/user"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/requestdata"
)

type UserService interface {
	GetMe(ctx context.Context) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo userrepo.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo userrepo.UserRepo) UserService {
	serviceLog := baseLog.With("service", "UserService")
	return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func (s *userService) GetMe(ctx context.Context) (*domain.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_identity", nil)
	}
	return s.GetByID(ctx, rd.UserID)
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_user_failed", err)
	}
	if len(users) == 0 {
		return nil, apierr.New(http.StatusNotFound, "user_not_found", nil)
	}
	return users[0], nil
}
