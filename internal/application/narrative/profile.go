package narrative

import (
	"strings"
)

// Profile 由问卷推导出的恐怖偏好画像
type Profile struct {
	HorrorType       string
	EndingPreference string
	Intensity        string

	Setting      string
	FearSource   string
	SensoryFocus string
	Pacing       string

	NarrativeStyle string

	// Traits 按题目顺序列出的所选偏好
	Traits []string
}

func answerOr(answers map[string]string, qid, dflt string) string {
	if v, ok := answers[qid]; ok && v != "" {
		return v
	}
	return dflt
}

func lookup(table map[string]string, key, fallbackKey string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return table[fallbackKey]
}

// intensityKey 强度由 q2/q6/q10 组合决定
func intensityKey(q2, q6, q10 string) string {
	switch {
	case q2 == "a" && q10 == "a":
		return "max"
	case q2 == "b" && q6 == "b":
		return "high"
	case q2 == "c":
		return "mind"
	default:
		return "mid"
	}
}

// Analyze 根据问卷答案生成画像。缺失的回答按 a 处理，语り手风格缺省为 b。
func (c *Catalog) Analyze(answers map[string]string) Profile {
	t := c.Profile
	q2 := answerOr(answers, "q2", "a")
	q6 := answerOr(answers, "q6", "a")
	q10 := answerOr(answers, "q10", "a")

	p := Profile{
		HorrorType:       lookup(t.HorrorTypes, q2, "a"),
		EndingPreference: lookup(t.Endings, answerOr(answers, "q9", "a"), "b"),
		Intensity:        t.Intensity[intensityKey(q2, q6, q10)],
		Setting:          lookup(t.Settings, answerOr(answers, "q1", "a"), "a"),
		FearSource:       lookup(t.FearSources, answerOr(answers, "q5", "a"), "a"),
		SensoryFocus:     lookup(t.Sensory, answerOr(answers, "q8", "a"), "a"),
		Pacing:           lookup(t.Pacing, q6, "a"),
		NarrativeStyle:   lookup(t.NarrativeStyles, answerOr(answers, "q10", "b"), "b"),
	}
	for _, q := range c.Questions {
		if pref, ok := c.Preference(q.ID, answers[q.ID]); ok {
			p.Traits = append(p.Traits, pref)
		}
	}
	return p
}

// Render 渲染为提示词中的「ユーザーの好み」段落
func (p Profile) Render() string {
	var b strings.Builder
	b.WriteString("【ユーザーホラープロファイル】\n")
	b.WriteString("恐怖タイプ: " + p.HorrorType + "\n")
	b.WriteString("結末好み: " + p.EndingPreference + "\n")
	b.WriteString("恐怖強度: " + p.Intensity + "\n\n")
	b.WriteString("【物語要素指定】\n")
	b.WriteString("舞台: " + p.Setting + "\n")
	b.WriteString("恐怖の源: " + p.FearSource + "\n")
	b.WriteString("五感刺激: " + p.SensoryFocus + "\n")
	b.WriteString("ペース: " + p.Pacing + "\n\n")
	b.WriteString("【語りスタイル】\n")
	b.WriteString(p.NarrativeStyle + "\n\n")
	b.WriteString("【ユーザー回答詳細】")
	for _, trait := range p.Traits {
		b.WriteString("\n- " + trait)
	}
	return b.String()
}
