package narrative

import (
	"strings"
	"testing"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	return c
}

func TestDefaultCatalogHasTenQuestions(t *testing.T) {
	c := mustCatalog(t)
	if len(c.Questions) != 10 {
		t.Fatalf("questions = %d", len(c.Questions))
	}
	for _, q := range c.Questions {
		if len(q.Options) != 3 {
			t.Errorf("%s has %d options", q.ID, len(q.Options))
		}
	}
}

func TestValidate(t *testing.T) {
	c := mustCatalog(t)
	if err := c.Validate(map[string]string{"q1": "a", "q10": "c"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := c.Validate(nil); err == nil {
		t.Error("empty answers should fail")
	}
	if err := c.Validate(map[string]string{"q11": "a"}); err == nil {
		t.Error("unknown question should fail")
	}
	if err := c.Validate(map[string]string{"q1": "d"}); err == nil {
		t.Error("unknown option should fail")
	}
}

func TestIntensityRules(t *testing.T) {
	c := mustCatalog(t)
	tests := []struct {
		name    string
		answers map[string]string
		want    string
	}{
		{"max", map[string]string{"q2": "a", "q10": "a"}, "max"},
		{"missing counts as a", map[string]string{}, "max"},
		{"high", map[string]string{"q2": "b", "q6": "b"}, "high"},
		{"mind", map[string]string{"q2": "c", "q6": "b"}, "mind"},
		{"mid", map[string]string{"q2": "a", "q10": "b"}, "mid"},
		{"mid b", map[string]string{"q2": "b", "q6": "a"}, "mid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Analyze(tt.answers)
			if p.Intensity != c.Profile.Intensity[tt.want] {
				t.Fatalf("Intensity = %q", p.Intensity)
			}
		})
	}
}

func TestAnalyzeDefaults(t *testing.T) {
	c := mustCatalog(t)
	p := c.Analyze(nil)
	if p.HorrorType != c.Profile.HorrorTypes["a"] {
		t.Errorf("HorrorType = %q", p.HorrorType)
	}
	if p.EndingPreference != c.Profile.Endings["a"] {
		t.Errorf("EndingPreference = %q", p.EndingPreference)
	}
	if p.NarrativeStyle != c.Profile.NarrativeStyles["b"] {
		t.Errorf("NarrativeStyle = %q", p.NarrativeStyle)
	}
	if len(p.Traits) != 0 {
		t.Errorf("Traits = %v", p.Traits)
	}
}

func TestAnalyzeAndRender(t *testing.T) {
	c := mustCatalog(t)
	p := c.Analyze(map[string]string{"q1": "b", "q9": "c", "q10": "c"})
	if p.Setting != c.Profile.Settings["b"] || p.EndingPreference != c.Profile.Endings["c"] {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.Traits) != 3 || p.Traits[0] != "日常に潜む歪みや違和感" {
		t.Fatalf("Traits = %v", p.Traits)
	}
	out := p.Render()
	for _, want := range []string{"【ユーザーホラープロファイル】", "【物語要素指定】", "【語りスタイル】", "【ユーザー回答詳細】", "- 日常に潜む歪みや違和感"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render missing %q", want)
		}
	}
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	data := []byte("questions:\n  - id: q1\n  - id: q1\n")
	if _, err := LoadCatalog(data); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := LoadCatalog([]byte("questions: []\n")); err == nil {
		t.Fatal("expected empty error")
	}
}
