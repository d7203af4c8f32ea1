package utils

import (
	"strings"
	"testing"
)

func TestJwtRoundtrip(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	token, err := JwtGenerate(42, "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token must be valid")
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("claims type = %T", parsed.Claims)
	}
	if claim.ID != 42 || claim.Role != "Admin" {
		t.Fatalf("claims = %+v, want id 42 role Admin", claim)
	}
}

func TestJwtValidateRejectsTamperedToken(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	token, err := JwtGenerate(42, "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	// alter the payload segment so the signature no longer matches
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	parsed, err := JwtValidate(tampered)
	if err == nil && parsed.Valid {
		t.Fatal("tampered token must not validate")
	}
}

func TestJwtGenerateRequiresLifespan(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "")

	if _, err := JwtGenerate(1, "Applicant"); err == nil {
		t.Fatal("missing TOKEN_HOUR_LIFESPAN must fail")
	}
}
