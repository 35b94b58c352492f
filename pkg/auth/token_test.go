package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testCfg, now, 30*time.Minute, userID, enums.RoleAdmin)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testCfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-2*time.Hour), time.Hour, uuid.New(), enums.RoleCustomer)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), time.Hour, uuid.New(), enums.RoleCustomer)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: "storefront"}, token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "elsewhere"}, token); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, signed); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	if _, err := MintAccessToken(testCfg, time.Now(), time.Hour, uuid.New(), "owner"); err == nil {
		t.Fatalf("expected mint to reject unknown role")
	}
}
