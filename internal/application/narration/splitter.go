// Package narration 负责把完成的小说切分、清洗并合成为朗读音频
package narration

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkLimit gpt-4o-mini-tts 单次请求的安全字数（约 1800 token）
	DefaultChunkLimit = 2300

	// breakThreshold 断句位置不得早于 limit 的 70%
	breakThreshold = 0.7

	// ContinuationMarker 强制截断时附加的续接标记
	ContinuationMarker = "..."
)

// breakTokens 断句候选，按优先级无关的集合处理，取最右侧的一个
var breakTokens = []string{"。", ".", "！", "？", "\n\n", "\n"}

// Split 将文本按句子边界切分为不超过 limit 个字符的片段。
// 片段均非空；强制截断的片段会额外附加 ContinuationMarker。
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	remaining := []rune(text)
	if len(remaining) <= limit {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	threshold := float64(limit) * breakThreshold
	var chunks []string
	for len(remaining) > limit {
		window := remaining[:limit]
		cut := lastBreak(window, threshold)
		if cut >= 0 {
			if chunk := strings.TrimSpace(string(remaining[:cut+1])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			remaining = []rune(strings.TrimSpace(string(remaining[cut+1:])))
			continue
		}
		chunks = append(chunks, string(window)+ContinuationMarker)
		remaining = remaining[limit:]
	}

	if tail := strings.TrimSpace(string(remaining)); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// lastBreak 返回 window 中最右侧且不早于阈值的断句位置（rune 下标），未找到返回 -1
func lastBreak(window []rune, threshold float64) int {
	best := -1
	for _, token := range breakTokens {
		idx := lastIndexRunes(window, []rune(token))
		if idx > best && float64(idx) >= threshold {
			best = idx
		}
	}
	return best
}

func lastIndexRunes(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

var (
	markdownReplacer = strings.NewReplacer("**", "", "*", "", "`", "", "#", "", "---", "")
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// CleanForSpeech 去掉 Markdown 标记并折叠空白，得到适合朗读的文本
func CleanForSpeech(text string) string {
	cleaned := markdownReplacer.Replace(text)
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
