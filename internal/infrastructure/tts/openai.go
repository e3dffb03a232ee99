// Package tts 提供基于 OpenAI Speech API 的语音合成
package tts

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/domain/service"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// 带朗读指示的模型语速下调 0.1，但不低于该值
const minInstructedSpeed = 0.7

// Synthesizer 先用支持朗读指示的模型合成，失败时回落到基础模型
type Synthesizer struct {
	client        *openai.Client
	model         string
	fallbackModel string
	instructions  string
}

// NewSynthesizer 未配置 API Key 时返回不可用
func NewSynthesizer(cfg *config.TTSConfig) service.Availability[*Synthesizer] {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return service.Unavailable[*Synthesizer]("tts api key not configured")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return service.Available(&Synthesizer{
		client:        openai.NewClientWithConfig(oc),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		instructions:  cfg.Instructions,
	})
}

// Synthesize 合成一段文本为 mp3
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	audio, err := s.create(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		Instructions:   s.instructions,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          math.Max(minInstructedSpeed, speed-0.1),
	})
	if err == nil || s.fallbackModel == "" || s.fallbackModel == s.model {
		return audio, err
	}

	logger.Warn(ctx, "tts primary model failed, falling back",
		"model", s.model,
		"fallback", s.fallbackModel,
		"error", err.Error(),
	)
	return s.create(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.fallbackModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
}

func (s *Synthesizer) create(ctx context.Context, req openai.CreateSpeechRequest) ([]byte, error) {
	model := string(req.Model)
	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		metrics.TTSChunksTotal.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("create speech with %s: %w", model, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		metrics.TTSChunksTotal.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("read speech with %s: %w", model, err)
	}
	if len(audio) == 0 {
		metrics.TTSChunksTotal.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("empty speech from %s", model)
	}

	metrics.TTSChunksTotal.WithLabelValues(model, "success").Inc()
	metrics.TTSAudioBytes.Add(float64(len(audio)))
	logger.Debug(ctx, "speech synthesized", "model", model, "size", humanize.Bytes(uint64(len(audio))))
	return audio, nil
}
