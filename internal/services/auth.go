package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	userrepo "github.com/learnhubhq/learnhub-backend/internal/data/repos/user"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/requestdata"
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	// SetContextFromToken validates a bearer token and attaches the
	// caller's identity to the context for downstream services.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

type authService struct {
	db        *gorm.DB
	log       *logger.Logger
	userRepo  userrepo.UserRepo
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo userrepo.UserRepo,
	jwtSecret string,
	tokenTTL time.Duration,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		db:        db,
		log:       serviceLog,
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apierr.New(http.StatusBadRequest, "invalid_email", nil)
	}
	if len(in.Password) < 8 {
		return nil, apierr.New(http.StatusBadRequest, "password_too_short", nil)
	}

	existing, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_user_failed", err)
	}
	if existing != nil {
		return nil, apierr.New(http.StatusConflict, "email_taken", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "hash_password_failed", err)
	}

	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	created, err := s.userRepo.Create(ctx, nil, []*domain.User{user})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "create_user_failed", err)
	}

	token, err := s.signToken(created[0])
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "sign_token_failed", err)
	}
	s.log.Info("User registered", "user_id", created[0].ID, "email", email)
	return &AuthResult{User: created[0], AccessToken: token}, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_user_failed", err)
	}
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", nil)
	}

	token, err := s.signToken(user)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "sign_token_failed", err)
	}
	return &AuthResult{User: user, AccessToken: token}, nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", err)
	}
	if claims.UserID == uuid.Nil {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", nil)
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      claims.UserID,
		Email:       claims.Email,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *authService) signToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := authClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
