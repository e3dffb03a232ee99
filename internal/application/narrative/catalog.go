// Package narrative 负责问卷画像与多轮故事的阶段推进
package narrative

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed quiz.yaml
var defaultCatalogYAML []byte

// Option 选项
type Option struct {
	Value      string `yaml:"value" json:"value"`
	Text       string `yaml:"text" json:"text"`
	Preference string `yaml:"preference" json:"-"`
}

// Question 问卷题目
type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Question string   `yaml:"question" json:"question"`
	Options  []Option `yaml:"options" json:"options"`
}

// ProfileTables 画像映射表，键为选项值
type ProfileTables struct {
	HorrorTypes     map[string]string `yaml:"horror_types"`
	Endings         map[string]string `yaml:"endings"`
	Intensity       map[string]string `yaml:"intensity"`
	Settings        map[string]string `yaml:"settings"`
	FearSources     map[string]string `yaml:"fear_sources"`
	Sensory         map[string]string `yaml:"sensory"`
	Pacing          map[string]string `yaml:"pacing"`
	NarrativeStyles map[string]string `yaml:"narrative_styles"`
}

// Catalog 问卷与画像表
type Catalog struct {
	Questions []Question    `yaml:"questions"`
	Profile   ProfileTables `yaml:"profile"`

	index map[string]map[string]Option
}

// LoadCatalog 解析 YAML 问卷
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse quiz catalog: %w", err)
	}
	if len(c.Questions) == 0 {
		return nil, fmt.Errorf("quiz catalog has no questions")
	}
	c.index = make(map[string]map[string]Option, len(c.Questions))
	for _, q := range c.Questions {
		if _, dup := c.index[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		opts := make(map[string]Option, len(q.Options))
		for _, o := range q.Options {
			opts[o.Value] = o
		}
		c.index[q.ID] = opts
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog 返回内置问卷
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadCatalog(defaultCatalogYAML)
	})
	return defaultCatalog, defaultErr
}

// Validate 校验问卷答案：题号与选项都必须存在，至少回答一题
func (c *Catalog) Validate(answers map[string]string) error {
	if len(answers) == 0 {
		return fmt.Errorf("quiz answers are empty")
	}
	for qid, value := range answers {
		opts, ok := c.index[qid]
		if !ok {
			return fmt.Errorf("unknown question %q", qid)
		}
		if _, ok := opts[value]; !ok {
			return fmt.Errorf("invalid option %q for question %s", value, qid)
		}
	}
	return nil
}

// Preference 返回某题所选选项的偏好描述
func (c *Catalog) Preference(qid, value string) (string, bool) {
	o, ok := c.index[qid][value]
	if !ok {
		return "", false
	}
	return o.Preference, true
}
