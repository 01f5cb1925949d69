package devauth

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/target/mmk-auth-api/internal/ports"
)

func TestProvider_BeginAndExchange(t *testing.T) {
	prov, err := NewProvider(Config{Email: "dev@example.com", GivenName: "Dev", FamilyName: "User"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	authURL, state, nonce, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if !strings.HasPrefix(authURL, DefaultCallbackPath+"?") {
		t.Fatalf("unexpected authURL: %s", authURL)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse authURL: %v", err)
	}
	if u.Query().Get("state") != state {
		t.Fatalf("authURL state = %q, want %q", u.Query().Get("state"), state)
	}
	if state == "" || nonce == "" || state == nonce {
		t.Fatal("state and nonce should be generated and distinct")
	}

	claims, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	if err != nil {
		t.Fatalf("Exchange error: %v", err)
	}
	if claims.Email != "dev@example.com" || claims.Name != "Dev User" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.EmailVerified == nil || !*claims.EmailVerified {
		t.Fatal("dev claims should report a verified email")
	}

	*claims.EmailVerified = false
	again, _ := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev"})
	if !*again.EmailVerified {
		t.Fatal("Exchange must not share the verified flag between callers")
	}
}

func TestNewProvider_RequiresEmail(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected error for missing email")
	}
}

func TestProvider_Exchange_RequiresCode(t *testing.T) {
	prov, err := NewProvider(Config{Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	if _, err := prov.Exchange(context.Background(), ports.ExchangeInput{}); err == nil {
		t.Fatal("expected error for missing code")
	}
}
