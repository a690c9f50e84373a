package service

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/internal/repository"
	"github.com/modaline/store-api/internal/utils"
)

type AdminAuthService struct {
	adminRepo *repository.AdminUserRepository
}

func NewAdminAuthService(adminRepo *repository.AdminUserRepository) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo}
}

func (s *AdminAuthService) Login(email, password string) (string, error) {
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.adminRepo.GetByEmail(email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to get user by email")
		return "", utils.ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return "", utils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Error().Err(err).Str("email", email).Msg("Password verification failed")
		return "", utils.ErrInvalidCredentials
	}

	log.Info().Str("email", email).Msg("Login successful")

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", err
	}

	if err := s.adminRepo.UpdateLastLogin(user.ID); err != nil {
		log.Warn().Err(err).Int("user_id", user.ID).Msg("Failed to update last login")
	}

	return token, nil
}

func (s *AdminAuthService) CreateAdmin(email, password, name string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		IsActive:     true,
	}

	return s.adminRepo.Create(user)
}
