package middlewares

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"atlas-civico/config"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// parseToken extracts and validates the JWT from the Authorization header or
// the auth_token cookie, returning user_id and role claims.
func parseToken(c *gin.Context) (string, string, error) {
	tokenString := ""

	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		tokenString = authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = authHeader[7:]
		}
	} else if cookie, err := c.Cookie("auth_token"); err == nil {
		tokenString = cookie
	}

	if tokenString == "" {
		return "", "", fmt.Errorf("no authorization token provided")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return "", "", fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid authorization token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", fmt.Errorf("invalid token claims")
	}
	role, _ := claims["role"].(string)

	return userID, role, nil
}

// AuthMiddleware rejects requests without a valid token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := parseToken(c)
		if err != nil {
			config.Log.Debugf("Token validation failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the identity when a valid token is present
// but lets anonymous requests through.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, role, err := parseToken(c); err == nil {
			c.Set("user_id", userID)
			c.Set("role", role)
		}
		c.Next()
	}
}
