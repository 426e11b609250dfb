package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/seowithroki-star/file-store-bot/internal/config"
)

const tokenIssuer = "file-store-bot"

type authRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// Auth exchanges the configured admin API key for a short-lived dashboard
// JWT.
func (h *Handler) Auth(c *gin.Context) {
	if h.Cfg.AdminAPIKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin API disabled"})
		return
	}

	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.APIKey != h.Cfg.AdminAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		return
	}

	claims := jwt.MapClaims{
		"exp": time.Now().Add(config.DashboardTokenTTL).Unix(),
		"iss": tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.Cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed})
}

// AuthRequired is the gin middleware guarding the admin endpoints.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		if err := h.validateToken(strings.TrimPrefix(authHeader, "Bearer ")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		c.Next()
	}
}

func (h *Handler) validateToken(tokenString string) error {
	_, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(h.Cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	return err
}
