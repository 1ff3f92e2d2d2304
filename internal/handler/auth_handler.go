package handler

import (
	"errors"
	"net/http"

	"github.com/Baaaki/imf-gadgets/internal/service"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest

	// 1. Parse JSON request; field rules live in the service
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Registration request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	logger.Log.Info("User registration attempt",
		zap.String("username", req.Username),
		zap.String("ip", c.ClientIP()),
	)

	// 2. Call service
	user, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		var validation *service.ValidationError
		switch {
		case errors.As(err, &validation):
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Registration failed"})
		default:
			logger.Log.Error("Registration failed",
				zap.String("username", req.Username),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	// 3. Return the public part of the user
	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest

	// 1. Parse JSON request
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Login request parsing failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	logger.Log.Info("User login attempt",
		zap.String("username", req.Username),
		zap.String("ip", c.ClientIP()),
	)

	// 2. Call service
	user, token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		logger.Log.Error("Login failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	// 3. Token goes in the body; clients send it back as a bearer header
	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
	})
}
