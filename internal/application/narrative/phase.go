package narrative

// DefaultTotalTurns 起承転結的四轮设计：承、承、転、結
const DefaultTotalTurns = 4

// PhaseLabel 阶段标签
type PhaseLabel string

const (
	PhaseOpening    PhaseLabel = "opening"
	PhaseRising     PhaseLabel = "rising"
	PhasePreClimax  PhaseLabel = "pre-climax"
	PhaseResolution PhaseLabel = "resolution"
)

// 各阶段字数
const (
	RegularLengthBudget = "250-350文字程度で物語を続けてください。"
	FinalLengthBudget   = "400-500文字程度で物語を完結させてください。恐怖のクライマックスと結末を書いてください。"
	OpeningLengthBudget = "250-350文字程度で物語の冒頭を書いてください"
)

// 生成指示
const (
	DirectiveThreeChoices = "読者が次にどう行動するか3つの選択肢を用意してください。なお、選択肢以外の行動も想像力を膨らませて記述することを推奨して。"
	DirectiveOpenQuestion = "選択肢は示さずに「最期に貴方は・・・・？」という質問をユーザーに投げかけて、自由に記述させるようにしてください。"
	DirectiveConclude     = "ユーザーの好みに応じた結末で物語を完結させてください。バッドエンド、ビターエンド、ハッピーエンドのいずれかで、プロファイルの結末好みに従ってください。"
)

const (
	risingInstruction     = "【承】恐怖の展開と状況の悪化。不安を増大させ、読者をさらに深く恐怖の世界に引き込んでください。"
	preClimaxInstruction  = "【転】恐怖がさらに高まり、真実に近づく。読者を恐怖のクライマックスへと導いてください。"
	resolutionInstruction = "【結】物語の完結。恐怖の結末を迎え、ユーザーの好みに応じた強烈なインパクトで終わらせてください。"
	fallbackInstruction   = "【承】恐怖の展開と状況の悪化。"
	openingInstruction    = "【起】恐怖の種をまき、読者を不穏な世界に引き込んでください。"
)

// Phase 某一轮生成所处的阶段与指示
type Phase struct {
	Label        PhaseLabel
	Stage        string // 起/承/転/結
	Instruction  string
	Directive    string
	LengthBudget string

	// Turn 是第几次用户发言，Total 是设计的总轮数
	Turn  int
	Total int

	IsFinal       bool
	IsPenultimate bool
	// Fallback 轮数超出建模范围，按「承」处理
	Fallback bool
}

// Opening 开场（起）阶段，尚无用户发言
func Opening() Phase {
	return Phase{
		Label:        PhaseOpening,
		Stage:        "起",
		Instruction:  openingInstruction,
		Directive:    DirectiveThreeChoices,
		LengthBudget: OpeningLengthBudget,
		Total:        DefaultTotalTurns,
	}
}

// PhaseFor 由已记录的用户发言数决定阶段。
// 1..total-2 为承，total-1 为転（倒数第二轮），total 为結；其余回落到承并标记 Fallback。
func PhaseFor(userTurns, totalTurns int) Phase {
	if totalTurns < 2 {
		totalTurns = DefaultTotalTurns
	}
	p := Phase{Turn: userTurns, Total: totalTurns}

	switch {
	case userTurns == totalTurns:
		p.Label = PhaseResolution
		p.Stage = "結"
		p.Instruction = resolutionInstruction
		p.Directive = DirectiveConclude
		p.LengthBudget = FinalLengthBudget
		p.IsFinal = true
	case userTurns == totalTurns-1:
		p.Label = PhasePreClimax
		p.Stage = "転"
		p.Instruction = preClimaxInstruction
		p.Directive = DirectiveOpenQuestion
		p.LengthBudget = RegularLengthBudget
		p.IsPenultimate = true
	case userTurns >= 1 && userTurns < totalTurns-1:
		p.Label = PhaseRising
		p.Stage = "承"
		p.Instruction = risingInstruction
		p.Directive = DirectiveThreeChoices
		p.LengthBudget = RegularLengthBudget
	default:
		p.Label = PhaseRising
		p.Stage = "承"
		p.Instruction = fallbackInstruction
		p.Directive = DirectiveThreeChoices
		p.LengthBudget = RegularLengthBudget
		p.Fallback = true
	}
	return p
}

// CountUserTurns 统计历史中的用户发言数
func CountUserTurns[T interface{ IsUser() bool }](turns []T) int {
	n := 0
	for _, t := range turns {
		if t.IsUser() {
			n++
		}
	}
	return n
}
