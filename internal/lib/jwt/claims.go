package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "ai-tg-bot"

// ErrInvalidClaims токен подписан верно, но не содержит субъекта или роли.
var ErrInvalidClaims = errors.New("token has no subject or role")

// CustomClaims описывает данные, хранящиеся в JWT.
type CustomClaims struct {
	Role                 string `json:"role"` // Роль владельца токена
	jwt.RegisteredClaims        // Subject, ExpiresAt, IssuedAt и пр.
}

// GenerateToken создаёт подписанный HS256 токен для subject с ролью role.
func (j *MakerImpl) GenerateToken(subject, role string) (string, error) {
	const op = "jwt.GenerateToken"
	now := time.Now()
	claims := CustomClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ParseToken проверяет подпись, срок действия и издателя токена
// и возвращает его claims.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	claims := &CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidClaims)
	}
	return claims, nil
}
