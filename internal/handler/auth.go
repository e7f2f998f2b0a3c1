package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	authmw "hlstype/internal/middleware"
)

const jwtExpiry = 24 * time.Hour

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a configured user
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
	}

	u, ok := h.cfg.User(req.Username)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		h.log.Info("login rejected", zap.String("user", req.Username))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	tokenString, err := authmw.IssueToken(h.cfg.JWTSecret, u.Username, u.Role, jwtExpiry, h.now())
	if err != nil {
		h.log.Error("failed to sign token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"token": tokenString,
		"user": map[string]interface{}{
			"username": u.Username,
			"role":     u.Role,
		},
	})
}

// GetCurrentUser returns the authenticated actor and what they may do
func (h *Handler) GetCurrentUser(c echo.Context) error {
	role := authmw.Role(c)
	caps := []authmw.Capability{}
	for _, cp := range []authmw.Capability{authmw.ManageOptions, authmw.UploadFiles, authmw.EditPosts} {
		if authmw.Can(role, cp) {
			caps = append(caps, cp)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"username":     authmw.Username(c),
		"role":         role,
		"capabilities": caps,
	})
}
