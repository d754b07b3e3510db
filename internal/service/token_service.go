package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/config"
)

// TokenTypeChannel tags capability tokens for the live session channel so
// they cannot be replayed as another credential class.
const TokenTypeChannel = "channel"

// TokenSlack is how much longer than the attempt's time limit a channel
// token stays valid, tolerating network delay around finalize.
const TokenSlack = 5 * time.Minute

// Token validation errors.
var (
	ErrTokenExpired = errors.New("channel token expired")
	ErrTokenInvalid = errors.New("invalid channel token")
)

// ChannelClaims scope a capability token to exactly one attempt, with an
// optional subject identifier.
type ChannelClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	AttemptID string `json:"attempt_id"`
	SubjectID string `json:"subject_id,omitempty"`
}

// TokenService issues and verifies channel capability tokens. Tokens are
// stateless: verified by signature, never looked up.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{secret: []byte(cfg.TokenSecret)}
}

// IssueChannelToken creates a token scoped to one attempt, valid for the
// attempt's time limit plus TokenSlack.
func (s *TokenService) IssueChannelToken(attemptID uuid.UUID, subjectID string, timeLimit time.Duration) (string, error) {
	now := time.Now()

	claims := ChannelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   attemptID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeLimit + TokenSlack)),
		},
		TokenType: TokenTypeChannel,
		AttemptID: attemptID.String(),
		SubjectID: subjectID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateChannelToken parses and verifies a token, enforcing the channel
// credential class. It returns ErrTokenExpired for an expired-but-otherwise
// valid token and ErrTokenInvalid for everything else.
func (s *TokenService) ValidateChannelToken(tokenStr string) (*ChannelClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ChannelClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*ChannelClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != TokenTypeChannel {
		return nil, ErrTokenInvalid
	}
	if _, err := uuid.Parse(claims.AttemptID); err != nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
