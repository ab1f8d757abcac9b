package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotes/internal/service/auth"
	"tasknotes/pkg/logger"
	"tasknotes/pkg/util"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Logout(ctx context.Context, claims *util.Claims) error
}

type AuthHandler struct {
	authService AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Register handles POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := bindOptional(c, &req); err != nil {
		respondMalformed(c)
		return
	}

	sess, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    sess.User,
		"token":   sess.Token,
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginInput
	if err := bindOptional(c, &req); err != nil {
		respondMalformed(c)
		return
	}

	sess, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    sess.User,
		"token":   sess.Token,
	})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.respondError(c, "logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Successfully logged out.",
	})
}

func (h *AuthHandler) respondError(c *gin.Context, op string, err error) {
	if respondValidation(c, err) {
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Error("Auth request failed",
		zap.String("op", op),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Server Error",
	})
}

// bindOptional binds JSON or form input; an empty body leaves out untouched so
// validation can report the missing fields.
func bindOptional(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 && c.ContentType() == "" {
		return nil
	}
	if err := c.ShouldBind(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
