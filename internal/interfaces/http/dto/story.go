package dto

import (
	"time"

	"horror-nobel-api/internal/application/narrative"
	appstory "horror-nobel-api/internal/application/story"
	"horror-nobel-api/internal/domain/entity"
)

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	QuizAnswers map[string]string `json:"quizAnswers" binding:"required"`
}

// CreateStoryResponse 创建故事响应
type CreateStoryResponse struct {
	StoryID        string `json:"storyId"`
	InitialMessage string `json:"initialMessage"`
}

// ChatTurnResponse 对话发言
type ChatTurnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StoryResponse 故事详情
type StoryResponse struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	QuizAnswers map[string]string  `json:"quizAnswers"`
	ChatHistory []ChatTurnResponse `json:"chatHistory"`
	UserTurns   int                `json:"userTurns"`
	Novel       string             `json:"novel,omitempty"`
	AudioURLs   []string           `json:"audioUrls,omitempty"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

// ToStoryResponse 实体转响应，邮箱不对外返回
func ToStoryResponse(s *entity.Story) *StoryResponse {
	if s == nil {
		return nil
	}
	turns := make([]ChatTurnResponse, 0, len(s.ChatHistory))
	for _, t := range s.ChatHistory {
		turns = append(turns, ChatTurnResponse{Role: string(t.Role), Content: t.Content})
	}
	return &StoryResponse{
		ID:          s.ID,
		Status:      string(s.Status),
		QuizAnswers: s.QuizAnswers,
		ChatHistory: turns,
		UserTurns:   s.UserTurns(),
		Novel:       s.Novel,
		AudioURLs:   s.AudioURLs,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// ToStoryListResponse 批量转换
func ToStoryListResponse(items []*entity.Story) []*StoryResponse {
	out := make([]*StoryResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToStoryResponse(s))
	}
	return out
}

// ChatRequest 对话请求
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	Reply         string `json:"reply"`
	Phase         string `json:"phase"`
	Stage         string `json:"stage"`
	Turn          int    `json:"turn"`
	TotalTurns    int    `json:"totalTurns"`
	IsFinal       bool   `json:"isFinal"`
	IsPenultimate bool   `json:"isPenultimate"`
}

// ToChatResponse 对话结果转响应
func ToChatResponse(r *appstory.ChatResult) *ChatResponse {
	return &ChatResponse{
		Reply:         r.Reply,
		Phase:         string(r.Phase.Label),
		Stage:         r.Phase.Stage,
		Turn:          r.Phase.Turn,
		TotalTurns:    r.Phase.Total,
		IsFinal:       r.Phase.IsFinal,
		IsPenultimate: r.Phase.IsPenultimate,
	}
}

// CompleteResponse 成稿响应
type CompleteResponse struct {
	Message string `json:"message"`
	Novel   string `json:"novel"`
}

// EmailRequest 邮件请求
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// MessageResponse 仅含提示的响应
type MessageResponse struct {
	Message string `json:"message"`
	Queued  bool   `json:"queued,omitempty"`
}

// AudioListResponse 全部朗读片段
type AudioListResponse struct {
	AudioURLs []string `json:"audioUrls"`
	Chunks    int      `json:"chunks"`
}

// AudioURLResponse 单个音频
type AudioURLResponse struct {
	AudioURL string `json:"audioUrl"`
}

// QuizResponse 问卷
type QuizResponse struct {
	Questions []narrative.Question `json:"questions"`
}
