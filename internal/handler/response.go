package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasknotes/internal/validation"
	"tasknotes/pkg/util"
)

// Keys set on the gin context by the auth middleware.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"
)

// respondValidation writes a 422 when err carries field errors and reports whether
// it did.
func respondValidation(c *gin.Context, err error) bool {
	var verrs *validation.Errors
	if !errors.As(err, &verrs) {
		return false
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": verrs.Message(),
		"errors":  verrs.Fields(),
	})
	return true
}

func respondMalformed(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Malformed request body.",
	})
}

// getUserID 统一的 userID 读取工具
func getUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
		return 0, false
	}
	id, ok := v.(int)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
		return 0, false
	}
	return id, true
}

func getClaims(c *gin.Context) (*util.Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
		return nil, false
	}
	claims, ok := v.(*util.Claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
		return nil, false
	}
	return claims, true
}
