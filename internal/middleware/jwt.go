package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/response"
	"github.com/muhamadfadliazim-hub/cbt-utbk-online-sub000/internal/session"
)

const (
	// ContextKeyClaims is the Gin context key for verified JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyToken is the Gin context key for the raw bearer token,
	// kept so it can be forwarded to the upstream exam API.
	ContextKeyToken = "token"

	// TokenTypeStudent is the only token type this gateway accepts.
	TokenTypeStudent = "student"
)

// Claims is the student token payload issued by the upstream portal.
// This service only verifies; it never issues tokens.
type Claims struct {
	UserID    int    `json:"user_id"`
	Name      string `json:"name"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RequireStudentJWT validates a student JWT from the Authorization header.
// WebSocket upgrade requests cannot send headers from the browser, so a
// ?token= query param is accepted as a fallback (teacher of the upstream
// portal does the same for its streams).
func RequireStudentJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, claims, err := extractAndValidateClaims(c, secret)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != TokenTypeStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, tokenStr)
		c.Next()
	}
}

// GetIdentity builds the acting student's identity from the verified claims.
// Returns nil if the middleware did not run.
func GetIdentity(c *gin.Context) *session.Identity {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	token, _ := c.Get(ContextKeyToken)
	tokenStr, _ := token.(string)
	return &session.Identity{
		StudentID: claims.UserID,
		Name:      claims.Name,
		Token:     tokenStr,
	}
}

func extractAndValidateClaims(c *gin.Context, secret string) (string, *Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}

	// Fallback for WebSocket upgrades which cannot send headers.
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return "", nil, fmt.Errorf("authorization header or token query required")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}
	return tokenStr, claims, nil
}
