package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

// 未标注时的占位值，出现在指标与 span 属性中
const unknownLabel = "unknown"

func withLabel(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func labelFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return unknownLabel
	}
	return s
}

// WithWorkflowProvider 标注本次 LLM 调用所属的生成类型（opening/continue/final）与提供商
func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return withLabel(withLabel(ctx, llmCtxKeyWorkflow, workflow), llmCtxKeyProvider, provider)
}

// WorkflowFromContext 读取生成类型，缺省为 unknown
func WorkflowFromContext(ctx context.Context) string {
	return labelFrom(ctx, llmCtxKeyWorkflow)
}

// ProviderFromContext 读取提供商名，缺省为 unknown
func ProviderFromContext(ctx context.Context) string {
	return labelFrom(ctx, llmCtxKeyProvider)
}
