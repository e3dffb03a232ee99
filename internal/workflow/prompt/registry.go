// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptStoryOpeningV1  PromptID = "story_opening_v1"
	PromptStoryContinueV1 PromptID = "story_continue_v1"
	PromptStoryFinalV1    PromptID = "story_final_v1"
)

const (
	systemSuffix = ".system.txt"
	userSuffix   = ".user.txt"
)

// Registry 启动时一次性解析全部模板，之后只读
type Registry struct {
	once      sync.Once
	err       error
	templates map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{}
}

// ChatTemplate 取出已解析的模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	return tpl, nil
}

// IDs 已注册的模板 ID，按字典序
func (r *Registry) IDs() []PromptID {
	if r == nil || r.load() != nil {
		return nil
	}
	ids := make([]PromptID, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) load() error {
	r.once.Do(func() { r.templates, r.err = loadAll(templatesFS) })
	return r.err
}

// loadAll 以 system 文件为准配对 user 文件，缺一即报错
func loadAll(fsys fs.FS) (map[PromptID]einoprompt.ChatTemplate, error) {
	systems, err := fs.Glob(fsys, "templates/*"+systemSuffix)
	if err != nil {
		return nil, err
	}
	out := make(map[PromptID]einoprompt.ChatTemplate, len(systems))
	for _, sp := range systems {
		id := PromptID(strings.TrimSuffix(path.Base(sp), systemSuffix))
		system, err := readText(fsys, sp)
		if err != nil {
			return nil, err
		}
		user, err := readText(fsys, path.Join("templates", string(id)+userSuffix))
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", id, err)
		}
		out[id] = einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(system),
			schema.UserMessage(user),
		)
	}
	return out, nil
}

func readText(fsys fs.FS, name string) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
