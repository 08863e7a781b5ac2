package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret []byte
	jwtIssuer string
)

func Init(cfg *Config) {
	jwtSecret = []byte(cfg.JWTSecret)
	jwtIssuer = cfg.Issuer
}

type claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// VerifyToken проверяет Bearer-токен запроса и возвращает id аккаунта
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("no authorization header")
	}

	return verify(strings.TrimPrefix(authToken, "Bearer "))
}

// OptionalToken — то же, что VerifyToken, но отсутствие заголовка не ошибка:
// вызывающая сторона получает nil и работает с гостем
func OptionalToken(r *http.Request) (*string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return nil, nil
	}

	id, err := verify(strings.TrimPrefix(authToken, "Bearer "))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	id := c.AccountID
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		return "", fmt.Errorf("token has no account id")
	}

	return id, nil
}

// IssueToken выписывает токен для тестов и внутренних утилит
func IssueToken(accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(jwtSecret)
}
