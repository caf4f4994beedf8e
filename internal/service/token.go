package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

const (
	// SenderTokenTTL bounds the validity of a publish credential. There is no
	// revocation list: expiry is the only limit.
	SenderTokenTTL = 365 * 24 * time.Hour
	BearerTokenTTL = time.Hour
)

// Auther issues and verifies the credentials the gateway understands.
type Auther interface {
	// DecodeBearer verifies a general user bearer token.
	DecodeBearer(token string) (*model.Identity, error)
	IssueBearer(userID int64, email string) (string, error)

	// IssueSenderToken grants publishing rights into channel for adminEmail.
	IssueSenderToken(channel, adminEmail string) (string, error)
	VerifySenderToken(token string) (*model.SenderGrant, error)
}

// BearerClaims is the payload of user tokens minted by the login flow.
type BearerClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// SenderClaims binds a channel to the administrator allowed to publish into it.
type SenderClaims struct {
	Channel    string `json:"channel"`
	AdminEmail string `json:"admin_email"`
	jwt.RegisteredClaims
}

type TokenService struct {
	bearerSecret []byte
	senderSecret []byte
	now          func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(bearerSecret, senderSecret string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		bearerSecret: []byte(bearerSecret),
		senderSecret: []byte(senderSecret),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTokenServiceFromConfig is the fx constructor.
func NewTokenServiceFromConfig(cfg *config.Config) *TokenService {
	return NewTokenService(cfg.Auth.BearerSecret, cfg.Auth.SenderSecret)
}

func (s *TokenService) IssueBearer(userID int64, email string) (string, error) {
	now := s.now()
	claims := BearerClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(BearerTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.bearerSecret)
	if err != nil {
		return "", model.NewInternal("failed to sign bearer token", err)
	}
	return token, nil
}

func (s *TokenService) DecodeBearer(token string) (*model.Identity, error) {
	if token == "" {
		return nil, model.NewUnauthorized("missing bearer token", nil)
	}

	claims := &BearerClaims{}
	if err := s.parse(token, claims, s.bearerSecret); err != nil {
		return nil, model.NewUnauthorized("invalid bearer token", err)
	}

	return &model.Identity{UserID: claims.UserID, Email: claims.Subject}, nil
}

func (s *TokenService) IssueSenderToken(channel, adminEmail string) (string, error) {
	now := s.now()
	claims := SenderClaims{
		Channel:    channel,
		AdminEmail: adminEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SenderTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.senderSecret)
	if err != nil {
		return "", model.NewInternal("failed to sign sender token", err)
	}
	return token, nil
}

func (s *TokenService) VerifySenderToken(token string) (*model.SenderGrant, error) {
	if token == "" {
		return nil, model.NewUnauthorized("missing sender token", nil)
	}

	claims := &SenderClaims{}
	if err := s.parse(token, claims, s.senderSecret); err != nil {
		return nil, model.NewUnauthorized("invalid sender token", err)
	}

	return &model.SenderGrant{Channel: claims.Channel, AdminEmail: claims.AdminEmail}, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token is not valid")
	}
	return nil
}

// userIDString is used as a log attribute.
func userIDString(id int64) string { return strconv.FormatInt(id, 10) }
