package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/config"
)

func newTokenService(secret string) *TokenService {
	return NewTokenService(&config.Config{TokenSecret: secret})
}

func TestChannelToken_RoundTrip(t *testing.T) {
	svc := newTokenService("test-secret")
	attemptID := uuid.New()

	token, err := svc.IssueChannelToken(attemptID, "taker-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("IssueChannelToken: %v", err)
	}

	claims, err := svc.ValidateChannelToken(token)
	if err != nil {
		t.Fatalf("ValidateChannelToken: %v", err)
	}
	if claims.AttemptID != attemptID.String() {
		t.Errorf("AttemptID = %q, want %q", claims.AttemptID, attemptID)
	}
	if claims.SubjectID != "taker-1" {
		t.Errorf("SubjectID = %q, want taker-1", claims.SubjectID)
	}
	if claims.TokenType != TokenTypeChannel {
		t.Errorf("TokenType = %q, want %q", claims.TokenType, TokenTypeChannel)
	}
}

func TestChannelToken_Expired(t *testing.T) {
	svc := newTokenService("test-secret")

	// Negative limit pushes the expiry (limit + slack) into the past.
	token, err := svc.IssueChannelToken(uuid.New(), "", -TokenSlack-time.Minute)
	if err != nil {
		t.Fatalf("IssueChannelToken: %v", err)
	}

	_, err = svc.ValidateChannelToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestChannelToken_WrongSecret(t *testing.T) {
	issuer := newTokenService("secret-a")
	verifier := newTokenService("secret-b")

	token, err := issuer.IssueChannelToken(uuid.New(), "", time.Hour)
	if err != nil {
		t.Fatalf("IssueChannelToken: %v", err)
	}

	_, err = verifier.ValidateChannelToken(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestChannelToken_Tampered(t *testing.T) {
	svc := newTokenService("test-secret")

	token, err := svc.IssueChannelToken(uuid.New(), "", time.Hour)
	if err != nil {
		t.Fatalf("IssueChannelToken: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	tampered := parts[0] + ".x" + parts[1] + "." + parts[2]

	if _, err := svc.ValidateChannelToken(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestChannelToken_WrongType(t *testing.T) {
	svc := newTokenService("test-secret")
	now := time.Now()

	claims := ChannelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenType: "refresh",
		AttemptID: uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.ValidateChannelToken(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestChannelToken_GarbageAttemptID(t *testing.T) {
	svc := newTokenService("test-secret")
	now := time.Now()

	claims := ChannelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenType: TokenTypeChannel,
		AttemptID: "not-a-uuid",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.ValidateChannelToken(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
