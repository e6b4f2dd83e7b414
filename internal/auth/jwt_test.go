package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", time.Hour)

	tok, expiresAt, err := m.Issue(Identity{UserID: "user-123", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry %v from now", until)
	}

	got, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got.UserID != "user-123" || got.Email != "a@example.com" {
		t.Fatalf("identity mismatch: %+v", got)
	}
}

func TestNewManager_DefaultTTL(t *testing.T) {
	t.Parallel()

	if got := NewManager("s", 0).TTL(); got != 24*time.Hour {
		t.Fatalf("TTL = %v, want 24h", got)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", DefaultTTL)
	m.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	tok, _, err := m.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	m.now = time.Now

	_, err = m.Verify(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected the expired reason to be kept, got %v", err)
	}
	if Reason(err) != "expired" {
		t.Fatalf("Reason = %q, want expired", Reason(err))
	}
}

func TestVerify_JustBeforeExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Add(-DefaultTTL + time.Minute)

	m := NewManager("secret", DefaultTTL)
	m.now = func() time.Time { return issuedAt }

	tok, _, err := m.Issue(Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	m.now = time.Now

	if _, err := m.Verify(tok); err != nil {
		t.Fatalf("token one minute from expiry should verify: %v", err)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", time.Hour)

	tok, _, err := m.Issue(Identity{UserID: "u2", Email: "u2@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[5] == 'A' {
		sig[5] = 'B'
	} else {
		sig[5] = 'A'
	}
	parts[2] = string(sig)

	_, err = m.Verify(strings.Join(parts, "."))
	if !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewManager("right-secret", time.Hour).Issue(Identity{UserID: "u3"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = NewManager("wrong-secret", time.Hour).Verify(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := NewManager("k", time.Hour)

	for _, raw := range []string{"", "invalid-token", "not.a.jwt"} {
		_, err := m.Verify(raw)
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := Claims{
		UserID: "u4",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewManager("k", time.Hour).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u5"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewManager("k", time.Hour).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp to be rejected, got %v", err)
	}
}

func TestVerify_RequiresUserID(t *testing.T) {
	t.Parallel()

	m := NewManager("k", time.Hour)

	tok, _, err := m.Issue(Identity{Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := m.Verify(tok); !errors.Is(err, ErrTokenClaims) {
		t.Fatalf("expected ErrTokenClaims, got %v", err)
	}
}

func TestParseBearer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "missing", header: "", wantErr: ErrMissingAuthorization},
		{name: "wrong scheme", header: "InvalidFormat token", wantErr: ErrMalformedAuthorization},
		{name: "lowercase scheme", header: "bearer token", wantErr: ErrMalformedAuthorization},
		{name: "scheme only", header: "Bearer", wantErr: ErrMalformedAuthorization},
		{name: "empty token", header: "Bearer ", wantErr: ErrMalformedAuthorization},
		{name: "extra part", header: "Bearer a b", wantErr: ErrMalformedAuthorization},
		{name: "double space", header: "Bearer  a", wantErr: ErrMalformedAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBearer(tt.header)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseBearer(%q) err = %v, want %v", tt.header, err, tt.wantErr)
				}
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("header errors must also be ErrInvalidToken")
				}
				return
			}

			if err != nil || got != tt.want {
				t.Fatalf("ParseBearer(%q) = %q, %v; want %q", tt.header, got, err, tt.want)
			}
		})
	}
}
