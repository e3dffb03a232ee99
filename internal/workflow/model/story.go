package model

import "horror-nobel-api/internal/domain/entity"

// StoryOpeningInput 开场生成输入
type StoryOpeningInput struct {
	Profile      string
	TotalTurns   int
	LengthBudget string
	Directive    string
}

// StoryContinueInput 续写输入
type StoryContinueInput struct {
	Profile string
	History []entity.ChatTurn

	Stage            string
	Turn             int
	TotalTurns       int
	PhaseInstruction string
	LengthBudget     string
	Directive        string
}

// StoryFinalInput 成稿输入
type StoryFinalInput struct {
	Profile string
	History []entity.ChatTurn
}
