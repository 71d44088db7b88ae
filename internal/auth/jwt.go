package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "ditto-builder-backend"

var ErrInvalidClaims = errors.New("invalid token claims (missing widget id)")

// --- JWT Claims ---

// WidgetClaims binds a token to exactly one widget.
type WidgetClaims struct {
	WidgetID uuid.UUID `json:"widget_id"`
	jwt.RegisteredClaims
}

// NewWidgetToken generates a new JWT access token for a widget.
func NewWidgetToken(widgetID uuid.UUID, jwtSecret string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := WidgetClaims{
		WidgetID: widgetID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   widgetID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Printf("Error signing JWT token for widget %s: %v", widgetID, err)
		return "", err
	}
	return signedToken, nil
}

// ParseWidgetToken validates tokenString and returns its claims.
// Errors wrap the jwt package's sentinels (jwt.ErrTokenExpired, jwt.ErrTokenMalformed, ...).
func ParseWidgetToken(tokenString, jwtSecret string) (*WidgetClaims, error) {
	claims := &WidgetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.WidgetID == uuid.Nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
