package security

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestProvider(t *testing.T, ttl time.Duration) *TokenProvider {
	t.Helper()
	p, err := NewTokenProvider("unit-test-secret", "HS256", ttl)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	return p
}

func TestIssueDecode_RoundTrip(t *testing.T) {
	p := newTestProvider(t, 30*time.Minute)

	before := time.Now().UTC()
	token, expiresAt, err := p.Issue("42", "nguoi_lap_hop_dong", "sess-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := time.Until(expiresAt); got < 29*time.Minute || got > 31*time.Minute {
		t.Errorf("expiresAt %v not ~30m from now", expiresAt)
	}

	claims, err := p.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("sub = %q, want %q", claims.Subject, "42")
	}
	if claims.VaiTro != "nguoi_lap_hop_dong" {
		t.Errorf("vai_tro = %q, want %q", claims.VaiTro, "nguoi_lap_hop_dong")
	}
	if claims.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want %q", claims.SessionID, "sess-1")
	}
	// exp should equal issue time + ttl within clock tolerance.
	wantExp := before.Add(30 * time.Minute)
	if diff := claims.ExpiresAt.Time.Sub(wantExp); diff < -2*time.Second || diff > 2*time.Second {
		t.Errorf("exp = %v, want ~%v", claims.ExpiresAt.Time, wantExp)
	}
}

func TestDecode_ExpiredToken(t *testing.T) {
	p := newTestProvider(t, -time.Minute)

	token, _, err := p.Issue("42", "admin", "sess-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Decode expired token: err = %v, want ErrInvalidToken", err)
	}
}

func TestDecode_WrongSecret(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	other, err := NewTokenProvider("another-secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}

	token, _, err := other.Issue("42", "admin", "sess-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Decode with wrong secret: err = %v, want ErrInvalidToken", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := p.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decode(%q): err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestDecode_MissingSessionIDTolerated(t *testing.T) {
	p := newTestProvider(t, time.Hour)

	token, _, err := p.Issue("7", "ke_toan", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := p.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.SessionID != "" {
		t.Errorf("session_id = %q, want empty", claims.SessionID)
	}
}

func TestDecode_MissingRequiredClaims(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"no sub", jwt.MapClaims{"vai_tro": "admin", "exp": exp}},
		{"no vai_tro", jwt.MapClaims{"sub": "7", "exp": exp}},
		{"no exp", jwt.MapClaims{"sub": "7", "vai_tro": "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc.claims).SignedString([]byte("unit-test-secret"))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := p.Decode(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Decode: err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssue_MissingSecret(t *testing.T) {
	p := &TokenProvider{method: nil}
	if _, _, err := p.Issue("1", "admin", "s"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("Issue without secret: err = %v, want ErrMissingSecret", err)
	}
}

func TestNewTokenProvider_UnsupportedAlgorithm(t *testing.T) {
	if _, err := NewTokenProvider("secret", "RS256", time.Hour); err == nil {
		t.Fatal("NewTokenProvider should reject RS256")
	}
}

func TestTokenWireFormat(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	token, _, err := p.Issue("42", "giam_sat", "sess-9")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d dot-separated segments, want 3", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("claims segment is not base64url: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("claims segment is not JSON: %v", err)
	}
	if m["sub"] != "42" || m["vai_tro"] != "giam_sat" || m["session_id"] != "sess-9" {
		t.Errorf("claims = %v, want sub/vai_tro/session_id set", m)
	}
	if _, ok := m["exp"]; !ok {
		t.Error("claims missing exp")
	}
}
