package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messenger-service/internal/config"
)

// CookieName is the auth cookie issued after OTP verification.
const CookieName = "auth_token"

func secret() []byte {
	return []byte(config.GetEnv("JWT_SECRET", "secret"))
}

// GenerateToken signs a long-lived token for the verified user.
func GenerateToken(userID int) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(365 * 24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// ValidateToken verifies the signature and returns the authenticated user id.
func ValidateToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret(), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token")
	}

	// JSON numbers decode as float64.
	userID, ok := claims["user_id"].(float64)
	if !ok || userID == 0 {
		return 0, errors.New("invalid token claims")
	}
	return int(userID), nil
}
