package stripe

import (
	"context"
	"testing"

	"github.com/bazaarlabs/bazaar-backend/pkg/config"
)

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  config.StripeConfig
	}{
		{"missing api key", config.StripeConfig{Secret: "whsec_x", Env: "test"}},
		{"missing secret", config.StripeConfig{APIKey: "sk_test_x", Env: "test"}},
		{"bad env", config.StripeConfig{APIKey: "sk_test_x", Secret: "whsec_x", Env: "staging"}},
		{"live env with test key", config.StripeConfig{APIKey: "sk_test_x", Secret: "whsec_x", Env: "live"}},
		{"test env with live key", config.StripeConfig{APIKey: "sk_live_x", Secret: "whsec_x", Env: "test"}},
	}
	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.cfg, nil); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}

func TestNewClientAcceptsMatchingKeys(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_123",
		Env:    "test",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("unexpected environment %s", client.Environment())
	}
	if client.SigningSecret() != "whsec_123" {
		t.Fatal("signing secret not retained")
	}
}
