// Package llm 提供基于 Eino 的 ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/domain/service"
)

// EinoFactory 按 provider 名称惰性创建并缓存 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Availability 默认 provider 是否已配置 API Key
func (f *EinoFactory) Availability() service.Availability[*EinoFactory] {
	p, ok := f.config.Providers[f.config.DefaultProvider]
	switch {
	case !ok:
		return service.Unavailable[*EinoFactory](fmt.Sprintf("provider %q not configured", f.config.DefaultProvider))
	case strings.TrimSpace(p.APIKey) == "":
		return service.Unavailable[*EinoFactory](fmt.Sprintf("provider %q has no api key", f.config.DefaultProvider))
	}
	return service.Available(f)
}

// Get 获取指定名称的 ChatModel，未指定时使用默认 provider
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	p, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	cfg := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.MaxTokens > 0 {
		cfg.MaxTokens = &p.MaxTokens
	}
	if p.Temperature > 0 {
		t := float32(p.Temperature)
		cfg.Temperature = &t
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}
	f.models[name] = chatModel
	return chatModel, nil
}
