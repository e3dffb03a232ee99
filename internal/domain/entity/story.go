package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryStatus 故事状态
type StoryStatus string

const (
	StoryStatusInProgress StoryStatus = "in_progress"
	StoryStatusCompleted  StoryStatus = "completed"
)

// QuizAnswers 问卷答案，题号 -> 选项
type QuizAnswers map[string]string

// ChatTurn 一次对话发言，历史只追加
type ChatTurn struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// IsUser 是否为用户发言
func (t ChatTurn) IsUser() bool {
	return t.Role == RoleUser
}

// Story 互动恐怖故事
type Story struct {
	ID          string      `json:"id"`
	QuizAnswers QuizAnswers `json:"quiz_answers"`
	ChatHistory []ChatTurn  `json:"chat_history"`
	Status      StoryStatus `json:"status"`
	Novel       string      `json:"novel,omitempty"`
	Email       string      `json:"email,omitempty"`
	AudioURLs   []string    `json:"audio_urls,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewStory 创建进行中的故事，开场白作为第一条 model 发言
func NewStory(answers QuizAnswers, opening string) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:          uuid.NewString(),
		QuizAnswers: answers,
		ChatHistory: []ChatTurn{{Role: RoleModel, Content: opening}},
		Status:      StoryStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendTurn 追加发言
func (s *Story) AppendTurn(role Role, content string) {
	s.ChatHistory = append(s.ChatHistory, ChatTurn{Role: role, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// UserTurns 已记录的用户发言数
func (s *Story) UserTurns() int {
	n := 0
	for _, t := range s.ChatHistory {
		if t.IsUser() {
			n++
		}
	}
	return n
}

// Complete 写入成稿并标记完成
func (s *Story) Complete(novel string) {
	s.Novel = novel
	s.Status = StoryStatusCompleted
	s.UpdatedAt = time.Now().UTC()
}

// Opening 开场白，即第一条 model 发言
func (s *Story) Opening() string {
	for _, t := range s.ChatHistory {
		if t.Role == RoleModel {
			return t.Content
		}
	}
	return ""
}

func (s *Story) IsCompleted() bool {
	return s.Status == StoryStatusCompleted
}

// HasNovel 成稿是否可用
func (s *Story) HasNovel() bool {
	return strings.TrimSpace(s.Novel) != ""
}
