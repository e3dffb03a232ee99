package narration

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func TestSplitEqualToLimitIsSingleChunk(t *testing.T) {
	text := strings.Repeat("闇", 2300)
	chunks := Split(text, 2300)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Fatal("等长文本不应被修改")
	}
}

func TestSplitAtFullWidthPeriod(t *testing.T) {
	text := strings.Repeat("あ", 2100) + "。" + strings.Repeat("い", 1899)
	if n := utf8.RuneCountInString(text); n != 4000 {
		t.Fatalf("测试数据长度 = %d", n)
	}

	chunks := Split(text, 2300)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 2101 {
		t.Errorf("第一段长度 = %d, want 2101", n)
	}
	if !strings.HasSuffix(chunks[0], "。") {
		t.Error("第一段应以句号结尾")
	}
	if chunks[1] != strings.Repeat("い", 1899) {
		t.Error("第二段应为剩余文本")
	}
}

func TestSplitIgnoresBreaksBeforeThreshold(t *testing.T) {
	// 1000 处的句号在 70% 之前，不应作为断点
	text := strings.Repeat("う", 1000) + "。" + strings.Repeat("え", 1999)
	chunks := Split(text, 2300)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ContinuationMarker) {
		t.Fatal("应强制截断并附加续接标记")
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 2300+len(ContinuationMarker) {
		t.Errorf("强制截断长度 = %d", n)
	}
}

func TestSplitBreakExactlyAtThreshold(t *testing.T) {
	// 1610 = 2300 * 0.7，恰好落在阈值上的句号可作为断点
	text := strings.Repeat("あ", 1610) + "。" + strings.Repeat("い", 2389)
	chunks := Split(text, 2300)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 1611 || !strings.HasSuffix(chunks[0], "。") {
		t.Fatalf("first chunk len = %d, suffix ok = %v", n, strings.HasSuffix(chunks[0], "。"))
	}
	// 剩余 2389 个「い」无断点，强制截断一次
	if !strings.HasSuffix(chunks[1], ContinuationMarker) || chunks[2] != strings.Repeat("い", 89) {
		t.Fatalf("remainder chunks = %d / %d runes", utf8.RuneCountInString(chunks[1]), utf8.RuneCountInString(chunks[2]))
	}

	// 阈值前一位（1609）仍不可用
	text = strings.Repeat("あ", 1609) + "。" + strings.Repeat("い", 2390)
	if chunks := Split(text, 2300); !strings.HasSuffix(chunks[0], ContinuationMarker) {
		t.Fatal("break before the threshold should be ignored")
	}
}

func TestSplitForceCutsRepeatedly(t *testing.T) {
	chunks := Split(strings.Repeat("お", 5000), 2300)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if utf8.RuneCountInString(chunks[2]) != 400 {
		t.Errorf("最后一段长度 = %d", utf8.RuneCountInString(chunks[2]))
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("か", 1800) + "\n\n" + strings.Repeat("き", 1000)
	chunks := Split(text, 2300)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("か", 1800) {
		t.Error("段落断点前的内容应完整保留并去掉空白")
	}
	if chunks[1] != strings.Repeat("き", 1000) {
		t.Error("段落断点后的内容应完整保留")
	}
}

func TestSplitShortAndEmpty(t *testing.T) {
	if got := Split("  短い話。\n", 2300); len(got) != 1 || got[0] != "短い話。" {
		t.Fatalf("Split(short) = %q", got)
	}
	if got := Split(" \n\t ", 2300); got != nil {
		t.Fatalf("Split(blank) = %q, want nil", got)
	}
	if got := Split("abc", 0); len(got) != 1 {
		t.Fatalf("非正 limit 应使用默认值: %q", got)
	}
}

func TestSplitPreservesContentAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("あいうえおかきくけこ闇影声血")
	breaks := []string{"。", "！", "？", "\n", "\n\n", " "}

	for round := 0; round < 50; round++ {
		var b strings.Builder
		size := 500 + rng.Intn(6000)
		for i := 0; i < size; i++ {
			if rng.Intn(40) == 0 {
				b.WriteString(breaks[rng.Intn(len(breaks))])
				continue
			}
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		text := b.String()
		limit := 200 + rng.Intn(2300)

		chunks := Split(text, limit)
		var rebuilt strings.Builder
		for i, c := range chunks {
			if c == "" {
				t.Fatalf("round %d: 第 %d 段为空", round, i)
			}
			body := strings.TrimSuffix(c, ContinuationMarker)
			if n := utf8.RuneCountInString(body); n > limit {
				t.Fatalf("round %d: 第 %d 段长度 %d 超过 %d", round, i, n, limit)
			}
			rebuilt.WriteString(body)
		}
		if stripSpace(rebuilt.String()) != stripSpace(text) {
			t.Fatalf("round %d: 非空白内容未按顺序保留", round)
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestCleanForSpeech(t *testing.T) {
	in := "# 題\n\n**闇**の*声*  `x` ---終"
	if got := CleanForSpeech(in); got != "題 闇の声 x 終" {
		t.Fatalf("CleanForSpeech = %q", got)
	}
}
