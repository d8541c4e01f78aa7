package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware.
const (
	UserKey = "userID"
	RoleKey = "userRole"
)

// Gateway headers forwarded by the api-gateway after it authenticated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// AccessTokenType is the "typ" claim of tokens accepted on API calls.
const AccessTokenType = "access"

// TokenParser validates bearer tokens signed with a shared HMAC secret.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenParser{}
	}
	return &TokenParser{secret: []byte(secret)}
}

// Parse returns the claims of tokenStr. If expectedType is non-empty, the
// claim "typ" must match it.
func (p *TokenParser) Parse(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if p == nil || p.secret == nil {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, errors.New("invalid token type")
		}
	}
	return claims, nil
}

// AuthMiddleware requires a bearer access token. The gateway identity
// headers are only honored when trustGatewayHeaders is set, which is safe
// only when every request reaches the service through the api-gateway.
func AuthMiddleware(parser *TokenParser, trustGatewayHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role string

		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
				return
			}
			claims, err := parser.Parse(strings.TrimPrefix(header, "Bearer "), AccessTokenType)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			userID, _ = claims["sub"].(string)
			role, _ = claims["role"].(string)
		} else if trustGatewayHeaders {
			userID = c.GetHeader(HeaderUserID)
			role = c.GetHeader(HeaderUserRole)
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		id, err := uuid.Parse(strings.TrimSpace(userID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserKey, id)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// GetUserID returns the authenticated caller.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if val, exists := c.Get(UserKey); exists {
		id, ok := val.(uuid.UUID)
		return id, ok
	}
	return uuid.Nil, false
}

// GetUserRole returns the role claimed by the token or gateway. It is a hint
// only; admin checks re-read the user record.
func GetUserRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}
