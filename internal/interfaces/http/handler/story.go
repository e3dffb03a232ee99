// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"horror-nobel-api/internal/application/narrative"
	appstory "horror-nobel-api/internal/application/story"
	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	"horror-nobel-api/internal/interfaces/http/dto"
	"horror-nobel-api/pkg/errors"
	"horror-nobel-api/pkg/logger"
)

// CompletedMessage 成稿完成提示
const CompletedMessage = "小説が完成しました。"

// StoryService 故事流程
type StoryService interface {
	Quiz() []narrative.Question
	Create(ctx context.Context, answers map[string]string) (*entity.Story, error)
	Get(ctx context.Context, id string) (*entity.Story, error)
	ListByEmail(ctx context.Context, email string, page, pageSize int) (*repository.PagedResult[*entity.Story], error)
	Chat(ctx context.Context, id, message string) (*appstory.ChatResult, error)
	Complete(ctx context.Context, id string) (*entity.Story, error)
	Finish(ctx context.Context, id, email string) (*entity.Story, error)
	SendEmail(ctx context.Context, id, email string) (bool, error)
	PDF(ctx context.Context, id string) ([]byte, string, error)
	Audio(ctx context.Context, id string) ([]string, error)
	AudioChunk(ctx context.Context, id string, index int) (string, error)
	AudioComplete(ctx context.Context, id string) (string, error)
}

// StoryHandler 故事处理器
type StoryHandler struct {
	svc StoryService
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(svc StoryService) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// GetQuiz 获取问卷
// @Summary 获取问卷
// @Tags Stories
// @Produce json
// @Success 200 {object} dto.Response[dto.QuizResponse]
// @Router /v1/quiz [get]
func (h *StoryHandler) GetQuiz(c *gin.Context) {
	dto.Success(c, &dto.QuizResponse{Questions: h.svc.Quiz()})
}

// CreateStory 创建故事
// @Summary 创建故事
// @Description 根据问卷答案生成开场
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.CreateStoryRequest true "问卷答案"
// @Success 201 {object} dto.Response[dto.CreateStoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/stories [post]
func (h *StoryHandler) CreateStory(c *gin.Context) {
	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	st, err := h.svc.Create(c.Request.Context(), req.QuizAnswers)
	if err != nil {
		h.fail(c, "failed to create story", err)
		return
	}
	dto.Created(c, &dto.CreateStoryResponse{
		StoryID:        st.ID,
		InitialMessage: st.Opening(),
	})
}

// GetStory 获取故事
// @Summary 获取故事详情
// @Tags Stories
// @Produce json
// @Param id path string true "故事 ID"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{id} [get]
func (h *StoryHandler) GetStory(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		h.fail(c, "failed to get story", err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(st))
}

// ListStories 按邮箱列出故事
// @Summary 按收件邮箱列出故事
// @Tags Stories
// @Produce json
// @Param email query string true "收件邮箱"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/stories [get]
func (h *StoryHandler) ListStories(c *gin.Context) {
	var q dto.ListStoriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, "email is required")
		return
	}
	page := q.Pagination()

	result, err := h.svc.ListByEmail(c.Request.Context(), q.Email, page.Page, page.PageSize)
	if err != nil {
		h.fail(c, "failed to list stories", err)
		return
	}
	meta := dto.NewPageMeta(page.Page, page.PageSize, int(result.Total))
	dto.SuccessWithPage(c, dto.ToStoryListResponse(result.Items), meta)
}

// Chat 发送对话
// @Summary 发送一轮对话
// @Tags Stories
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param body body dto.ChatRequest true "用户发言"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/chat [post]
func (h *StoryHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Chat(c.Request.Context(), dto.BindStoryID(c), req.Message)
	if err != nil {
		h.fail(c, "failed to process chat message", err)
		return
	}
	dto.Success(c, dto.ToChatResponse(result))
}

// Complete 生成成稿
// @Summary 生成成稿
// @Tags Stories
// @Produce json
// @Param id path string true "故事 ID"
// @Success 200 {object} dto.Response[dto.CompleteResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/complete [post]
func (h *StoryHandler) Complete(c *gin.Context) {
	st, err := h.svc.Complete(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		h.fail(c, "failed to complete story", err)
		return
	}
	dto.Success(c, &dto.CompleteResponse{Message: CompletedMessage, Novel: st.Novel})
}

// SendEmail 受理邮件发送
// @Summary 发送成稿 PDF 邮件
// @Tags Stories
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param body body dto.EmailRequest true "收件邮箱"
// @Success 202 {object} dto.Response[dto.MessageResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/send-email [post]
func (h *StoryHandler) SendEmail(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	queued, err := h.svc.SendEmail(c.Request.Context(), dto.BindStoryID(c), req.Email)
	if err != nil {
		h.fail(c, "failed to send story email", err)
		return
	}
	dto.Accepted(c, &dto.MessageResponse{Message: appstory.EmailAccepted, Queued: queued})
}

// Finish 同步成稿并发送邮件
// @Summary 完成故事并发送邮件
// @Tags Stories
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param body body dto.EmailRequest true "收件邮箱"
// @Success 200 {object} dto.Response[dto.MessageResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/finish [post]
func (h *StoryHandler) Finish(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if _, err := h.svc.Finish(c.Request.Context(), dto.BindStoryID(c), req.Email); err != nil {
		h.fail(c, "failed to finish story", err)
		return
	}
	dto.Success(c, &dto.MessageResponse{Message: appstory.EmailAccepted})
}

// DownloadPDF 下载成稿 PDF
// @Summary 下载 PDF
// @Tags Stories
// @Produce application/pdf
// @Param id path string true "故事 ID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/pdf [get]
func (h *StoryHandler) DownloadPDF(c *gin.Context) {
	data, title, err := h.svc.PDF(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		h.fail(c, "failed to render pdf", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="horror_novel.pdf"; filename*=UTF-8''%s.pdf`,
		url.PathEscape(title)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// GenerateAudio 合成全部朗读片段
// @Summary 生成朗读音频
// @Tags Audio
// @Produce json
// @Param id path string true "故事 ID"
// @Success 200 {object} dto.Response[dto.AudioListResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/audio [post]
func (h *StoryHandler) GenerateAudio(c *gin.Context) {
	urls, err := h.svc.Audio(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		h.fail(c, "failed to generate audio", err)
		return
	}
	dto.Success(c, &dto.AudioListResponse{AudioURLs: urls, Chunks: len(urls)})
}

// GetAudio 获取单个片段，或 complete 表示拼接后的完整音频
// @Summary 获取朗读片段
// @Tags Audio
// @Produce json
// @Param id path string true "故事 ID"
// @Param chunk path string true "片段序号或 complete"
// @Success 200 {object} dto.Response[dto.AudioURLResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/stories/{id}/audio/{chunk} [get]
func (h *StoryHandler) GetAudio(c *gin.Context) {
	ctx := c.Request.Context()
	id := dto.BindStoryID(c)
	chunk := c.Param("chunk")

	var (
		u   string
		err error
	)
	if chunk == "complete" {
		u, err = h.svc.AudioComplete(ctx, id)
	} else {
		index, convErr := strconv.Atoi(chunk)
		if convErr != nil {
			dto.BadRequest(c, "chunk must be an integer or \"complete\"")
			return
		}
		u, err = h.svc.AudioChunk(ctx, id, index)
	}
	if err != nil {
		h.fail(c, "failed to get audio", err)
		return
	}
	dto.Success(c, &dto.AudioURLResponse{AudioURL: u})
}

// fail 记录服务端错误后按 AppError 映射响应
func (h *StoryHandler) fail(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()
	if !errors.IsAppError(err) || errors.AsAppError(err).HTTPStatus >= http.StatusInternalServerError {
		logger.Error(ctx, msg, err, "story_id", c.Param("id"))
	}
	dto.AppError(c, err)
}
