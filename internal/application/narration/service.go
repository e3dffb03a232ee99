package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"horror-nobel-api/internal/domain/service"
	apperrors "horror-nobel-api/pkg/errors"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// Synthesizer 文本转语音
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// AudioStore 音频文件存储
type AudioStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
	URL(name string) string
}

// URLCache 音频 URL 读穿缓存
type URLCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error)
}

// Options 朗读参数
type Options struct {
	Voice       string
	Speed       float64
	ChunkLimit  int
	Concurrency int
	CacheTTL    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Voice == "" {
		o.Voice = "onyx"
	}
	if o.Speed <= 0 {
		o.Speed = 0.8
	}
	if o.ChunkLimit <= 0 {
		o.ChunkLimit = DefaultChunkLimit
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	return o
}

// Service 朗读服务：切分文本、并发合成、落盘并缓存 URL
type Service struct {
	synth service.Availability[Synthesizer]
	store AudioStore
	cache service.Availability[URLCache]
	opts  Options
}

// NewService 创建朗读服务
func NewService(synth service.Availability[Synthesizer], store AudioStore, cache service.Availability[URLCache], opts Options) *Service {
	return &Service{synth: synth, store: store, cache: cache, opts: opts.withDefaults()}
}

// Available 语音合成是否可用
func (s *Service) Available() bool {
	return s.synth.OK()
}

// Chunks 返回朗读用的文本片段
func (s *Service) Chunks(text string) []string {
	return Split(CleanForSpeech(text), s.opts.ChunkLimit)
}

func chunkFile(storyID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d.mp3", storyID, index)
}

func completeFile(storyID string) string {
	return storyID + "_complete.mp3"
}

func chunkCacheKey(storyID string, index int) string {
	return fmt.Sprintf("audio:%s:chunk:%d", storyID, index)
}

// ChunkURLs 合成全部片段并按顺序返回 URL
func (s *Service) ChunkURLs(ctx context.Context, storyID, text string) ([]string, error) {
	synth, err := s.synthesizer()
	if err != nil {
		return nil, err
	}
	chunks := s.Chunks(text)
	if len(chunks) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("no text to narrate")
	}

	urls := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			url, err := s.chunkURL(gctx, synth, storyID, i, chunk)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info(ctx, "narration chunks ready", "chunks", len(chunks))
	return urls, nil
}

// ChunkURL 合成并返回单个片段的 URL，下标越界返回参数错误
func (s *Service) ChunkURL(ctx context.Context, storyID, text string, index int) (string, error) {
	synth, err := s.synthesizer()
	if err != nil {
		return "", err
	}
	chunks := s.Chunks(text)
	if index < 0 || index >= len(chunks) {
		return "", apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("chunk index %d out of range [0,%d)", index, len(chunks)))
	}
	return s.chunkURL(ctx, synth, storyID, index, chunks[index])
}

// CompleteURL 把所有片段拼接为一个完整文件
func (s *Service) CompleteURL(ctx context.Context, storyID, text string) (string, error) {
	name := completeFile(storyID)
	ok, err := s.store.Exists(ctx, name)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "audio storage error")
	}
	if ok {
		return s.store.URL(name), nil
	}

	if _, err := s.ChunkURLs(ctx, storyID, text); err != nil {
		return "", err
	}

	var combined []byte
	for i := range s.Chunks(text) {
		part, err := s.store.Read(ctx, chunkFile(storyID, i))
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorageError, "audio storage error")
		}
		combined = append(combined, part...)
	}
	if err := s.store.Save(ctx, name, combined); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "audio storage error")
	}

	logger.Info(ctx, "complete narration saved", "size", humanize.Bytes(uint64(len(combined))))
	return s.store.URL(name), nil
}

func (s *Service) synthesizer() (Synthesizer, error) {
	synth, ok := s.synth.Get()
	if !ok {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("speech synthesis: " + s.synth.Reason())
	}
	return synth, nil
}

func (s *Service) chunkURL(ctx context.Context, synth Synthesizer, storyID string, index int, text string) (string, error) {
	loaded := false
	load := func(ctx context.Context) (any, error) {
		loaded = true
		return s.ensureChunk(ctx, synth, storyID, index, text)
	}

	cache, ok := s.cache.Get()
	if !ok {
		url, err := load(ctx)
		if err != nil {
			return "", err
		}
		return url.(string), nil
	}

	raw, err := cache.GetOrLoad(ctx, chunkCacheKey(storyID, index), s.opts.CacheTTL, load)
	if err != nil {
		return "", err
	}
	if loaded {
		metrics.TTSCacheTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.TTSCacheTotal.WithLabelValues("hit").Inc()
	}
	var url string
	if err := json.Unmarshal(raw, &url); err != nil {
		return "", fmt.Errorf("decode cached audio url: %w", err)
	}
	return url, nil
}

// ensureChunk 文件已存在时直接复用
func (s *Service) ensureChunk(ctx context.Context, synth Synthesizer, storyID string, index int, text string) (string, error) {
	name := chunkFile(storyID, index)
	ok, err := s.store.Exists(ctx, name)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "audio storage error")
	}
	if ok {
		return s.store.URL(name), nil
	}

	audio, err := synth.Synthesize(ctx, text, s.opts.Voice, s.opts.Speed)
	if err != nil {
		return "", apperrors.ErrSpeechFailed.WithError(err)
	}
	if err := s.store.Save(ctx, name, audio); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "audio storage error")
	}
	logger.Debug(ctx, "narration chunk saved",
		"index", index,
		"runes", len([]rune(text)),
		"size", humanize.Bytes(uint64(len(audio))),
	)
	return s.store.URL(name), nil
}
