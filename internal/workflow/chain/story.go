package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"horror-nobel-api/internal/domain/entity"
	llmctx "horror-nobel-api/internal/domain/service"
	wfmodel "horror-nobel-api/internal/workflow/model"
	workflowprompt "horror-nobel-api/internal/workflow/prompt"
	"horror-nobel-api/pkg/metrics"
)

// ModelSource 按提供商名取 ChatModel，由 llm.EinoFactory 实现
type ModelSource interface {
	Get(ctx context.Context, provider string) (model.BaseChatModel, error)
}

// StoryChain 故事三段生成：开场、续写、成稿
type StoryChain struct {
	factory  ModelSource
	provider string
	prompts  *workflowprompt.Registry
}

func NewStoryChain(factory ModelSource, provider string) *StoryChain {
	return &StoryChain{
		factory:  factory,
		provider: strings.TrimSpace(provider),
		prompts:  workflowprompt.NewRegistry(),
	}
}

// Opening 生成故事开场（起）
func (c *StoryChain) Opening(ctx context.Context, in *wfmodel.StoryOpeningInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	return c.generate(ctx, "story_opening", workflowprompt.PromptStoryOpeningV1, map[string]any{
		"profile":       in.Profile,
		"total":         in.TotalTurns,
		"length_budget": in.LengthBudget,
		"directive":     in.Directive,
	})
}

// Continue 按当前阶段续写
func (c *StoryChain) Continue(ctx context.Context, in *wfmodel.StoryContinueInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if len(in.History) == 0 {
		return "", fmt.Errorf("chat history is required")
	}
	return c.generate(ctx, "story_continue", workflowprompt.PromptStoryContinueV1, map[string]any{
		"profile":           in.Profile,
		"conversation":      FormatConversation(in.History),
		"stage":             in.Stage,
		"turn":              in.Turn,
		"total":             in.TotalTurns,
		"phase_instruction": in.PhaseInstruction,
		"length_budget":     in.LengthBudget,
		"directive":         in.Directive,
	})
}

// Final 将对话整理为完整短篇
func (c *StoryChain) Final(ctx context.Context, in *wfmodel.StoryFinalInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if len(in.History) == 0 {
		return "", fmt.Errorf("chat history is required")
	}
	return c.generate(ctx, "story_final", workflowprompt.PromptStoryFinalV1, map[string]any{
		"profile":      in.Profile,
		"conversation": FormatManuscriptHistory(in.History),
	})
}

func (c *StoryChain) generate(ctx context.Context, workflow string, id workflowprompt.PromptID, vars map[string]any) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	start := time.Now()
	defer func() {
		metrics.StoryGenerationDuration.WithLabelValues(workflow).Observe(time.Since(start).Seconds())
	}()

	ctx = llmctx.WithWorkflowProvider(ctx, workflow, c.provider)
	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		return "", err
	}

	tpl, err := c.prompts.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt %s: %w", id, err)
	}

	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return messageText(out)
}

func messageText(m *schema.Message) (string, error) {
	if m == nil {
		return "", fmt.Errorf("empty llm response")
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return "", fmt.Errorf("empty llm response")
	}
	return text, nil
}

// FormatConversation 续写用的对话上下文：语り部 / あなた
func FormatConversation(history []entity.ChatTurn) string {
	var b strings.Builder
	for _, t := range history {
		role := "語り部"
		if t.IsUser() {
			role = "あなた"
		}
		b.WriteString(role + ": " + t.Content + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatManuscriptHistory 成稿用的对话记录：【語り部】/【あなたの行動】
func FormatManuscriptHistory(history []entity.ChatTurn) string {
	var b strings.Builder
	for _, t := range history {
		role := "語り部"
		if t.IsUser() {
			role = "あなたの行動"
		}
		b.WriteString("【" + role + "】\n" + t.Content + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
