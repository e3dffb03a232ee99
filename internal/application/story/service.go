// Package story 编排互动恐怖故事的完整流程：创建、对话、成稿、PDF、邮件与朗读
package story

import (
	"context"
	"fmt"
	netmail "net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"horror-nobel-api/internal/application/narration"
	"horror-nobel-api/internal/application/narrative"
	"horror-nobel-api/internal/application/typeset"
	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	"horror-nobel-api/internal/domain/service"
	"horror-nobel-api/internal/infrastructure/mail"
	wfmodel "horror-nobel-api/internal/workflow/model"
	apperrors "horror-nobel-api/pkg/errors"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// EmailAccepted 邮件任务受理后的提示
const EmailAccepted = "PDFの生成と送信処理を受け付けました。"

// Generator 故事文本生成
type Generator interface {
	Opening(ctx context.Context, in *wfmodel.StoryOpeningInput) (string, error)
	Continue(ctx context.Context, in *wfmodel.StoryContinueInput) (string, error)
	Final(ctx context.Context, in *wfmodel.StoryFinalInput) (string, error)
}

// Locker 分布式互斥
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// EmailQueue 异步邮件任务队列
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, storyID, email string) (string, error)
}

// PDFRenderer 小说排版，失败时由实现自行降级
type PDFRenderer interface {
	Render(ctx context.Context, novel string) []byte
}

// Options 流程开关
type Options struct {
	TotalTurns       int
	StrictTurns      bool
	MaxMessageLength int
	DevMode          bool
	// MaskMailFailure 邮件失败时仍按成功返回
	MaskMailFailure bool
	LockTTL         time.Duration
}

// Deps 服务依赖，可选协作者以 Availability 表达
type Deps struct {
	Repo      repository.StoryRepository
	Generator service.Availability[Generator]
	Catalog   *narrative.Catalog
	Narration *narration.Service
	Renderer  PDFRenderer
	Mailer    service.Availability[mail.Sender]
	Locker    service.Availability[Locker]
	Queue     service.Availability[EmailQueue]
}

// Service 故事服务
type Service struct {
	Deps
	opts Options
}

// NewService 创建故事服务
func NewService(deps Deps, opts Options) *Service {
	if opts.TotalTurns < 2 {
		opts.TotalTurns = narrative.DefaultTotalTurns
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 3 * time.Minute
	}
	return &Service{Deps: deps, opts: opts}
}

// ChatResult 一轮对话的结果
type ChatResult struct {
	Story *entity.Story
	Reply string
	Phase narrative.Phase
}

// Quiz 问卷题目
func (s *Service) Quiz() []narrative.Question {
	return s.Catalog.Questions
}

// Create 根据问卷创建故事并生成开场
func (s *Service) Create(ctx context.Context, answers map[string]string) (*entity.Story, error) {
	if err := s.Catalog.Validate(answers); err != nil {
		return nil, apperrors.ErrInvalidParam.WithDetail(err.Error())
	}

	profile := s.Catalog.Analyze(answers)
	opening := narrative.Opening()
	gen, err := s.generator()
	if err != nil {
		return nil, err
	}
	text, err := gen.Opening(ctx, &wfmodel.StoryOpeningInput{
		Profile:      profile.Render(),
		TotalTurns:   s.opts.TotalTurns,
		LengthBudget: opening.LengthBudget,
		Directive:    opening.Directive,
	})
	if err != nil {
		metrics.StoryTurnsTotal.WithLabelValues(string(opening.Label), "error").Inc()
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}
	metrics.StoryTurnsTotal.WithLabelValues(string(opening.Label), "success").Inc()

	st := entity.NewStory(entity.QuizAnswers(answers), text)
	if err := s.Repo.Create(ctx, st); err != nil {
		return nil, err
	}

	logger.Info(logger.WithStoryID(ctx, st.ID), "story created", "horror_type", profile.HorrorType)
	return st, nil
}

// Get 读取故事
func (s *Service) Get(ctx context.Context, id string) (*entity.Story, error) {
	return s.Repo.GetByID(ctx, id)
}

// ListByEmail 列出某邮箱收到过的故事
func (s *Service) ListByEmail(ctx context.Context, email string, page, pageSize int) (*repository.PagedResult[*entity.Story], error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListByEmail(ctx, addr, repository.NewPagination(page, pageSize))
}

// Chat 追加用户发言并按阶段续写
func (s *Service) Chat(ctx context.Context, id, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("message is required")
	}
	if utf8.RuneCountInString(message) > s.opts.MaxMessageLength {
		return nil, apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("message exceeds %d characters", s.opts.MaxMessageLength))
	}

	ctx = logger.WithStoryID(ctx, id)
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.IsCompleted() {
		return nil, apperrors.ErrStoryCompleted
	}

	turn := st.UserTurns() + 1
	if s.opts.StrictTurns && turn > s.opts.TotalTurns {
		return nil, apperrors.ErrTurnLimit.WithDetail(
			fmt.Sprintf("story allows %d turns", s.opts.TotalTurns))
	}

	phase := narrative.PhaseFor(turn, s.opts.TotalTurns)
	if phase.Fallback {
		metrics.StoryPhaseFallbackTotal.Inc()
		logger.Warn(ctx, "user turn outside modelled phases, continuing as rising action",
			"turn", turn,
			"total", s.opts.TotalTurns,
		)
	}

	history := append(append([]entity.ChatTurn(nil), st.ChatHistory...),
		entity.ChatTurn{Role: entity.RoleUser, Content: message})
	gen, err := s.generator()
	if err != nil {
		return nil, err
	}
	reply, err := gen.Continue(ctx, &wfmodel.StoryContinueInput{
		Profile:          s.Catalog.Analyze(st.QuizAnswers).Render(),
		History:          history,
		Stage:            phase.Stage,
		Turn:             phase.Turn,
		TotalTurns:       phase.Total,
		PhaseInstruction: phase.Instruction,
		LengthBudget:     phase.LengthBudget,
		Directive:        phase.Directive,
	})
	if err != nil {
		metrics.StoryTurnsTotal.WithLabelValues(string(phase.Label), "error").Inc()
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}
	metrics.StoryTurnsTotal.WithLabelValues(string(phase.Label), "success").Inc()

	st.AppendTurn(entity.RoleUser, message)
	st.AppendTurn(entity.RoleModel, reply)
	if err := s.Repo.Update(ctx, st); err != nil {
		return nil, err
	}

	logger.Info(ctx, "story turn generated", "turn", turn, "phase", string(phase.Label))
	return &ChatResult{Story: st, Reply: reply, Phase: phase}, nil
}

// Complete 生成成稿。同一故事的并发完成请求只有一个能执行，已完成的直接返回。
func (s *Service) Complete(ctx context.Context, id string) (*entity.Story, error) {
	ctx = logger.WithStoryID(ctx, id)
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.IsCompleted() && st.HasNovel() {
		return st, nil
	}
	if st.UserTurns() == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("story has no user turns yet")
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	// 拿到锁后重新读取，避免覆盖另一请求刚写入的成稿
	st, err = s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.IsCompleted() && st.HasNovel() {
		return st, nil
	}

	gen, err := s.generator()
	if err != nil {
		return nil, err
	}
	novel, err := gen.Final(ctx, &wfmodel.StoryFinalInput{
		Profile: s.Catalog.Analyze(st.QuizAnswers).Render(),
		History: st.ChatHistory,
	})
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	st.Complete(novel)
	if err := s.Repo.Update(ctx, st); err != nil {
		return nil, err
	}
	chars := utf8.RuneCountInString(novel)
	metrics.NovelCharCount.Observe(float64(chars))
	logger.Info(ctx, "story completed", "chars", chars)
	return st, nil
}

func (s *Service) generator() (Generator, error) {
	gen, ok := s.Generator.Get()
	if !ok {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("llm: " + s.Generator.Reason())
	}
	return gen, nil
}

func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	locker, ok := s.Locker.Get()
	if !ok {
		return func() {}, nil
	}
	unlock, acquired, err := locker.TryLock(ctx, "story:lock:"+id, s.opts.LockTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to acquire story lock")
	}
	if !acquired {
		return nil, apperrors.ErrConflict.WithDetail("story completion already in progress")
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "failed to release story lock", "error", err.Error())
		}
	}, nil
}

// Finish 同步完成故事并发送 PDF 邮件
func (s *Service) Finish(ctx context.Context, id, email string) (*entity.Story, error) {
	addr, err := s.checkEmail(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if _, err := s.Complete(ctx, id); err != nil {
		return nil, err
	}
	return s.Deliver(ctx, id, addr)
}

// SendEmail 受理邮件发送。队列可用时异步投递，否则在请求内完成；返回是否进入队列。
func (s *Service) SendEmail(ctx context.Context, id, email string) (bool, error) {
	addr, err := s.checkEmail(ctx, id, email)
	if err != nil {
		return false, err
	}
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !st.HasNovel() {
		return false, apperrors.ErrNovelNotReady
	}
	if !s.Mailer.OK() {
		return false, apperrors.ErrServiceUnavailable.WithDetail("mail: " + s.Mailer.Reason())
	}

	ctx = logger.WithStoryID(ctx, id)
	if queue, ok := s.Queue.Get(); ok {
		msgID, err := queue.EnqueueEmail(ctx, id, addr)
		if err == nil {
			logger.Info(ctx, "email job enqueued", "message_id", msgID)
			return true, nil
		}
		logger.Error(ctx, "failed to enqueue email job, delivering inline", err)
	}

	if _, err := s.Deliver(ctx, id, addr); err != nil {
		return false, err
	}
	return false, nil
}

// Deliver 排版并发送成稿邮件，成功后记录收件邮箱
func (s *Service) Deliver(ctx context.Context, id, email string) (*entity.Story, error) {
	ctx = logger.WithStoryID(ctx, id)
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !st.HasNovel() {
		return nil, apperrors.ErrNovelNotReady
	}
	sender, ok := s.Mailer.Get()
	if !ok {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("mail: " + s.Mailer.Reason())
	}

	pdf := s.Renderer.Render(ctx, st.Novel)
	err = sender.Send(ctx, mail.Letter{
		To:    email,
		Title: novelTitle(ctx, st.Novel),
		Turns: s.opts.TotalTurns,
		PDF:   pdf,
	})
	if err != nil {
		if !s.opts.MaskMailFailure {
			return nil, apperrors.ErrMailFailed.WithError(err)
		}
		logger.Warn(ctx, "email delivery failed, treating as success", "error", err.Error())
	}

	st.Email = email
	st.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// PDF 返回成稿 PDF 与标题
func (s *Service) PDF(ctx context.Context, id string) ([]byte, string, error) {
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !st.HasNovel() {
		return nil, "", apperrors.ErrNovelNotReady
	}
	ctx = logger.WithStoryID(ctx, id)
	return s.Renderer.Render(ctx, st.Novel), novelTitle(ctx, st.Novel), nil
}

// novelTitle 成稿标题，解析失败时记录警告并使用默认标题
func novelTitle(ctx context.Context, novel string) string {
	doc, err := typeset.ParseManuscript(novel)
	if err != nil {
		logger.Warn(ctx, "failed to parse manuscript title", "error", err.Error())
	}
	return doc.TitleOrDefault()
}

// Audio 合成全部朗读片段并记录到故事
func (s *Service) Audio(ctx context.Context, id string) ([]string, error) {
	ctx = logger.WithStoryID(ctx, id)
	st, err := s.narratable(ctx, id)
	if err != nil {
		return nil, err
	}
	urls, err := s.Narration.ChunkURLs(ctx, id, st.Novel)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(st.AudioURLs, urls) {
		st.AudioURLs = urls
		st.UpdatedAt = time.Now().UTC()
		if err := s.Repo.Update(ctx, st); err != nil {
			return nil, err
		}
	}
	return urls, nil
}

// AudioChunk 单个朗读片段
func (s *Service) AudioChunk(ctx context.Context, id string, index int) (string, error) {
	ctx = logger.WithStoryID(ctx, id)
	st, err := s.narratable(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Narration.ChunkURL(ctx, id, st.Novel, index)
}

// AudioComplete 拼接后的完整朗读
func (s *Service) AudioComplete(ctx context.Context, id string) (string, error) {
	ctx = logger.WithStoryID(ctx, id)
	st, err := s.narratable(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Narration.CompleteURL(ctx, id, st.Novel)
}

// narratable 朗读文件按故事与片段序号命名，只对成稿生成，避免进行中的故事读到旧音频
func (s *Service) narratable(ctx context.Context, id string) (*entity.Story, error) {
	st, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !st.HasNovel() {
		return nil, apperrors.ErrNovelNotReady
	}
	if !s.Narration.Available() {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("speech synthesis unavailable")
	}
	return st, nil
}

func (s *Service) checkEmail(ctx context.Context, id, email string) (string, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if s.opts.DevMode {
		return addr, nil
	}
	used, err := s.Repo.IsEmailUsed(ctx, addr, id)
	if err != nil {
		return "", err
	}
	if used {
		return "", apperrors.ErrEmailUsed
	}
	return addr, nil
}

func normalizeEmail(email string) (string, error) {
	parsed, err := netmail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", apperrors.ErrInvalidParam.WithDetail("invalid email address")
	}
	return strings.ToLower(parsed.Address), nil
}
