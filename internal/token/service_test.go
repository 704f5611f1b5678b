package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/tunedeck/internal/model"
)

const testSecret = "test-secret-for-token-service"

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	svc.SetClock(func() time.Time { return now })
	return svc
}

func TestNewService_EmptySecret_ReturnsError(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.TTL() != time.Hour {
		t.Errorf("TTL = %v, want %v", svc.TTL(), time.Hour)
	}
}

func TestIssue_ThenVerify_ReturnsSameIdentity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, now)

	tok, expiresAt, err := svc.Issue(model.Identity{UserID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, now.Add(time.Hour))
	}

	identity, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.UserID != "user-1" || identity.Username != "alice" {
		t.Errorf("identity = %+v, want user-1/alice", identity)
	}
}

func TestIssue_PayloadCarriesExpectedClaims(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, now)

	tok, _, err := svc.Issue(model.Identity{UserID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("ParseUnverified returned error: %v", err)
	}
	if claims["userId"] != "user-1" {
		t.Errorf("userId = %v, want user-1", claims["userId"])
	}
	if claims["username"] != "alice" {
		t.Errorf("username = %v, want alice", claims["username"])
	}
	exp, _ := claims.GetExpirationTime()
	iat, _ := claims.GetIssuedAt()
	if exp == nil || iat == nil {
		t.Fatal("expected exp and iat claims")
	}
	if exp.Sub(iat.Time) != time.Hour {
		t.Errorf("exp - iat = %v, want 1h", exp.Sub(iat.Time))
	}
}

func TestIssue_EmptyUserID_ReturnsError(t *testing.T) {
	svc := newTestService(t, time.Now())
	if _, _, err := svc.Issue(model.Identity{Username: "alice"}); err == nil {
		t.Fatal("expected error for empty user ID")
	}
}

func TestVerify_ExpiredToken_ReturnsInvalidToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, issuedAt)

	tok, _, err := svc.Issue(model.Identity{UserID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just before expiry", issuedAt.Add(time.Hour - time.Second), false},
		{"at expiry", issuedAt.Add(time.Hour), true},
		{"after expiry", issuedAt.Add(2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.SetClock(func() time.Time { return tt.at })
			_, err := svc.Verify(tok)
			if tt.wantErr && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestVerify_WrongSecret_ReturnsInvalidToken(t *testing.T) {
	now := time.Now()
	issuer := newTestService(t, now)
	tok, _, err := issuer.Issue(model.Identity{UserID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other, err := NewService(Config{Secret: "another-secret"})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	other.SetClock(func() time.Time { return now })

	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_TamperedPayload_ReturnsInvalidToken(t *testing.T) {
	svc := newTestService(t, time.Now())
	tok, _, err := svc.Issue(model.Identity{UserID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	parts := strings.Split(tok, ".")
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "user-2"})
	forgedStr, _ := forged.SignedString([]byte("x"))
	parts[1] = strings.Split(forgedStr, ".")[1]

	if _, err := svc.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Malformed_ReturnsInvalidToken(t *testing.T) {
	svc := newTestService(t, time.Now())
	for _, tok := range []string{"", "abc", "a.b.c", "Bearer xyz"} {
		if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestVerify_NoneAlgorithm_ReturnsInvalidToken(t *testing.T) {
	now := time.Now()
	svc := newTestService(t, now)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_HS512_ReturnsInvalidToken(t *testing.T) {
	now := time.Now()
	svc := newTestService(t, now)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MissingExpiry_ReturnsInvalidToken(t *testing.T) {
	svc := newTestService(t, time.Now())

	claims := Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: DefaultIssuer},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
