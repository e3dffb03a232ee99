// Package callback 注册 Eino 全局回调：LLM 调用的指标与追踪
package callback

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"horror-nobel-api/internal/domain/service"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

type startTimeKey struct{}
type modelNameKey struct{}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelNameKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.type", info.Type))
			}
			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			modelName := modelNameFromOutput(output)
			if modelName == "" {
				modelName = modelNameFromContext(ctx)
			}
			elapsed := elapsedSeconds(ctx)

			metrics.LLMCallTotal.WithLabelValues(modelName, "success").Inc()
			if elapsed > 0 {
				metrics.LLMCallDuration.WithLabelValues(modelName).Observe(elapsed)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				prompt := output.TokenUsage.PromptTokens
				completion := output.TokenUsage.CompletionTokens
				metrics.LLMTokensUsed.WithLabelValues(modelName, "prompt").Add(float64(prompt))
				metrics.LLMTokensUsed.WithLabelValues(modelName, "completion").Add(float64(completion))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", prompt),
					attribute.Int("llm.completion_tokens", completion),
				)
				logger.Debug(ctx, "llm call finished",
					"workflow", service.WorkflowFromContext(ctx),
					"model", modelName,
					"prompt_tokens", prompt,
					"completion_tokens", completion,
					"duration_ms", int(elapsed*1000),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			modelName := modelNameFromContext(ctx)
			metrics.LLMCallTotal.WithLabelValues(modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(modelNameKey{}).(string)
	return s
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
