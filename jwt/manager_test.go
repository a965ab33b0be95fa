package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t testing.TB) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t testing.TB) (*Manager, ed25519.PrivateKey) {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "idp",
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, priv
}

func TestIssuePairRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	pair, err := m.IssuePair("u1", "t1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	access, err := m.Parse(pair.AccessToken, TypeAccess, "t1")
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if access.UID != "u1" || access.TID != "t1" {
		t.Fatalf("unexpected claims: %+v", access)
	}
	if _, err := m.Parse(pair.RefreshToken, TypeRefresh, "t1"); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}

	if _, err := m.Parse(pair.AccessToken, TypeRefresh, "t1"); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
	if _, err := m.Parse(pair.RefreshToken, TypeRefresh, "t2"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}

	next, err := m.IssuePair("u1", "t1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("successive refresh tokens must differ")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m, _ := newTestManager(t)

	claims := Claims{Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "idp",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	tok.Header["kid"] = "k1"
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token, TypeRefresh, ""); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRejectsExpiredAndUnknownKid(t *testing.T) {
	m, priv := newTestManager(t)

	expired := Claims{Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "idp",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, expired)
	tok.Header["kid"] = "k1"
	signed, _ := tok.SignedString(priv)
	if _, err := m.Parse(signed, TypeRefresh, ""); err == nil {
		t.Fatal("expected expired token to fail")
	}

	valid := Claims{Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "idp",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, valid)
	tok.Header["kid"] = "k9"
	signed, _ = tok.SignedString(priv)
	if _, err := m.Parse(signed, TypeRefresh, ""); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	noExp := Claims{Type: TypeRefresh, RegisteredClaims: gjwt.RegisteredClaims{Issuer: "idp"}}
	tok = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, noExp)
	tok.Header["kid"] = "k1"
	signed, _ = tok.SignedString(priv)
	if _, err := m.Parse(signed, TypeRefresh, ""); err == nil {
		t.Fatal("tokens without exp must be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := map[string]Config{
		"zero ttl":       {SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		"no hs key":      {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256},
		"no ed key":      {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519},
		"unknown method": {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs256", PublicKey: pub},
		"big leeway":     {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestPublicKeys(t *testing.T) {
	m, priv := newTestManager(t)
	keys := m.PublicKeys()
	got, ok := keys["k1"]
	if !ok || !got.Equal(priv.Public()) {
		t.Fatalf("unexpected key set: %v", keys)
	}

	hs, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if len(hs.PublicKeys()) != 0 {
		t.Fatal("hs256 must not publish keys")
	}
}
