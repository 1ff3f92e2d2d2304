package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/imf-gadgets/internal/models"
	"github.com/Baaaki/imf-gadgets/internal/repository"
	"github.com/Baaaki/imf-gadgets/internal/utils"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"go.uber.org/zap"
)

const maxUsernameLength = 50

type AuthService struct {
	userRepo      *repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(username, password string) (*models.User, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	logger.Log.Debug("Processing user registration",
		zap.String("username", username),
	)

	// 1. Validate input
	if err := validateCredentials(username, password); err != nil {
		logger.Log.Warn("Registration validation failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}

	// 2. Check if username already exists
	existingUser, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		logger.Log.Error("Failed to check username existence",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}
	if existingUser != nil {
		logger.Log.Warn("Username already exists",
			zap.String("username", username),
		)
		return nil, ErrUsernameAlreadyExists
	}

	// 3. Hash password (bcrypt)
	hashStart := time.Now()
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		logger.Log.Error("Failed to hash password",
			zap.Error(err),
		)
		return nil, err
	}
	hashDuration := time.Since(hashStart)

	// 4. Create user. The unique index catches a concurrent registration
	// that slipped past the check above.
	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Log.Warn("Username taken during registration",
				zap.String("username", username),
			)
			return nil, ErrUsernameAlreadyExists
		}
		logger.Log.Error("Failed to create user in database",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("User registered successfully",
		zap.String("user_id", user.ID),
		zap.String("username", username),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)

	return user, nil
}

// Login fails with ErrInvalidCredentials whether the username is unknown or
// the password is wrong.
func (s *AuthService) Login(username, password string) (*models.User, string, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	logger.Log.Debug("Processing user login",
		zap.String("username", username),
	)

	// 1. Get user by username
	user, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		logger.Log.Error("Failed to get user by username",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, "", err
	}
	if user == nil {
		utils.BurnPasswordCheck(password)
		logger.Log.Warn("Login failed: user not found",
			zap.String("username", username),
		)
		return nil, "", ErrInvalidCredentials
	}

	// 2. Verify password
	verifyStart := time.Now()
	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		logger.Log.Error("Failed to verify password",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, "", err
	}
	verifyDuration := time.Since(verifyStart)

	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("username", username),
			zap.String("user_id", user.ID),
		)
		return nil, "", ErrInvalidCredentials
	}

	// 3. Generate JWT token
	token, err := utils.GenerateToken(user.ID, s.jwtSecret, s.jwtExpiration)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return nil, "", err
	}

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Duration("password_verify_duration", verifyDuration),
		zap.Duration("total_duration", time.Since(start)),
	)

	return user, token, nil
}

func validateCredentials(username, password string) error {
	if username == "" {
		return invalid("username", "username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return invalid("username", "username must be at most 50 characters")
	}
	if password == "" {
		return invalid("password", "password is required")
	}
	if len(password) > utils.MaxPasswordBytes {
		return invalid("password", "password must be at most 72 bytes")
	}
	return nil
}
