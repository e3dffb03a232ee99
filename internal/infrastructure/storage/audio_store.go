// Package storage 提供音频文件存储，底层为 afero 文件系统（本地磁盘或内存）
package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"horror-nobel-api/internal/config"
)

const (
	BackendOS     = "os"
	BackendMemory = "memory"

	defaultAudioDir    = "static/audio"
	defaultAudioPrefix = "/static/audio"
)

// AudioStore 音频文件存储
type AudioStore struct {
	fs     afero.Fs
	dir    string
	prefix string
}

// NewAudioStore 按配置创建存储，本地后端会确保目录存在
func NewAudioStore(cfg *config.AudioStorageConfig) (*AudioStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultAudioDir
	}
	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix = defaultAudioPrefix
	}

	var fs afero.Fs
	switch cfg.Backend {
	case BackendMemory:
		fs = afero.NewMemMapFs()
	case BackendOS, "":
		fs = afero.NewOsFs()
	default:
		return nil, fmt.Errorf("unknown audio storage backend %q", cfg.Backend)
	}
	return NewAudioStoreWithFs(fs, dir, prefix)
}

// NewAudioStoreWithFs 使用给定文件系统创建存储
func NewAudioStoreWithFs(fs afero.Fs, dir, prefix string) (*AudioStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir %s: %w", dir, err)
	}
	return &AudioStore{fs: fs, dir: dir, prefix: prefix}, nil
}

// Save 先写临时文件再重命名，避免读到半截的音频
func (s *AudioStore) Save(_ context.Context, name string, data []byte) error {
	target := s.path(name)
	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write audio %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename audio %s: %w", name, err)
	}
	return nil
}

// Exists 文件是否存在
func (s *AudioStore) Exists(_ context.Context, name string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.path(name))
	if err != nil {
		return false, fmt.Errorf("stat audio %s: %w", name, err)
	}
	return ok, nil
}

// Read 读取整个文件
func (s *AudioStore) Read(_ context.Context, name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio %s not found: %w", name, err)
		}
		return nil, fmt.Errorf("read audio %s: %w", name, err)
	}
	return data, nil
}

// URL 对外访问路径
func (s *AudioStore) URL(name string) string {
	return path.Join(s.prefix, name)
}

// Prefix 静态路由前缀
func (s *AudioStore) Prefix() string {
	return s.prefix
}

// FileSystem 供 HTTP 静态路由使用
func (s *AudioStore) FileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs).Dir(s.dir)
}

func (s *AudioStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
