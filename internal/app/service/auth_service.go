package service

import (
	"errors"
	"strings"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/ikkim/vintage-store-backend/pkg/util"
	"gorm.io/gorm"
)

// AuthService maps identity-provider tokens to internal users.
type AuthService interface {
	Authenticate(token string) (*model.User, error)
	FindOrCreateUser(externalID, email string) (*model.User, error)
	GetUserByID(id uint) (*model.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	admins    map[string]struct{}
}

// NewAuthService builds the service. Subjects listed in adminExternalIDs get
// the admin role when their user row is first created.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, adminExternalIDs []string) AuthService {
	admins := make(map[string]struct{}, len(adminExternalIDs))
	for _, id := range adminExternalIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		admins:    admins,
	}
}

func (s *authService) Authenticate(token string) (*model.User, error) {
	claims, err := util.ValidateIdentityToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return s.FindOrCreateUser(claims.ExternalID(), claims.Email)
}

func (s *authService) FindOrCreateUser(externalID, email string) (*model.User, error) {
	user, err := s.userRepo.FindByExternalID(externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to look up user", err, map[string]interface{}{
			"external_id": externalID,
		})
		return nil, err
	}

	role := model.RoleUser
	if _, ok := s.admins[externalID]; ok {
		role = model.RoleAdmin
	}

	user = &model.User{
		ExternalID: externalID,
		Email:      email,
		Role:       role,
	}
	if err := s.userRepo.Create(user); err != nil {
		// a concurrent first request may have created the row
		if existing, findErr := s.userRepo.FindByExternalID(externalID); findErr == nil {
			return existing, nil
		}
		return nil, err
	}

	logger.Info("User registered from identity provider", map[string]interface{}{
		"user_id":     user.ID,
		"external_id": externalID,
		"role":        role,
	})
	return user, nil
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		logger.Error("Failed to fetch user", err, map[string]interface{}{
			"user_id": id,
		})
		return nil, err
	}
	return user, nil
}
