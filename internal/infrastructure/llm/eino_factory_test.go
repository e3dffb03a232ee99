package llm

import (
	"context"
	"testing"

	"horror-nobel-api/internal/config"
)

func TestAvailability(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {Model: "gpt-4o-mini"},
		},
	}}
	if NewEinoFactory(cfg).Availability().OK() {
		t.Fatal("missing api key should be unavailable")
	}

	cfg.LLM.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}
	if !NewEinoFactory(cfg).Availability().OK() {
		t.Fatal("configured provider should be available")
	}

	cfg.LLM.DefaultProvider = "other"
	if NewEinoFactory(cfg).Availability().OK() {
		t.Fatal("unknown provider should be unavailable")
	}
}

func TestGetUnknownProvider(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{DefaultProvider: "x"}})
	if _, err := f.Get(context.Background(), ""); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
