package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

const (
	userIDKey    = "user_id"
	cronHeader   = "X-Cron-Secret"
	tokenIssuer  = "phi"
	bearerPrefix = "Bearer "
)

// IssueToken signs a session token for userID.
func (s *Server) IssueToken(userID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Server) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", errors.Join(common.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", common.ErrUnauthorized
	}
	return claims.Subject, nil
}

// requireUser accepts a bearer token and stores the user id in the context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			s.respondError(c, common.ErrUnauthorized)
			return
		}
		userID, err := s.parseToken(header[len(bearerPrefix):])
		if err != nil {
			s.logger.Debug("Rejected token", "error", err)
			s.respondError(c, common.ErrUnauthorized)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// requireCronSecret compares the X-Cron-Secret header in constant time.
func (s *Server) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !secretMatches(c.GetHeader(cronHeader), s.cfg.CronSecret) {
			s.logger.Warn("Rejected cron call", "path", c.FullPath())
			s.respondError(c, common.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func secretMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

type tokenRequest struct {
	Phone  string `json:"phone" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type tokenResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
}

// handleToken exchanges a phone and the shared secret for a session token.
// An unknown phone answers like a wrong secret.
func (s *Server) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if !secretMatches(req.Secret, s.cfg.AuthSecret) {
		s.respondError(c, common.ErrUnauthorized)
		return
	}
	phone, err := whatsapp.NormalizePhone(req.Phone)
	if err != nil {
		s.respondError(c, err)
		return
	}
	user, err := s.deps.Store.GetUserByPhone(c.Request.Context(), phone)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			err = common.ErrUnauthorized
		}
		s.respondError(c, err)
		return
	}

	token, exp, err := s.IssueToken(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, UserID: user.ID})
}
