package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const (
	userKey ctxKey = iota
	replyLoaderKey
)

type claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

func generateToken(secret []byte, user models.Author, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

func validateJWT(secret []byte, tokenString string) (models.Author, error) {
	if tokenString == "" {
		return models.Author{}, errors.New("empty token")
	}
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Author{}, fmt.Errorf("invalid token: %w", err)
	}
	if c.UserID == "" {
		return models.Author{}, errors.New("token has no user_id")
	}
	return models.Author{ID: c.UserID, Name: c.Name}, nil
}

// authenticate accepts a bearer header, or a token query parameter for
// websocket clients that cannot set headers.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		user, err := validateJWT([]byte(s.cfg.Auth.Secret), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(ctx context.Context) models.Author {
	user, _ := ctx.Value(userKey).(models.Author)
	return user
}

type tokenRequest struct {
	UserID string `json:"userId" validate:"required"`
	Name   string `json:"name" validate:"required"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.check(&req); err != nil {
		writeError(w, err)
		return
	}
	token, err := generateToken([]byte(s.cfg.Auth.Secret), models.Author{ID: req.UserID, Name: req.Name}, s.cfg.Auth.TokenTTL)
	if err != nil {
		writeError(w, fmt.Errorf("sign token: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
