package storage

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
)

func newMemStore(t *testing.T) *AudioStore {
	t.Helper()
	s, err := NewAudioStoreWithFs(afero.NewMemMapFs(), "audio", "/static/audio")
	if err != nil {
		t.Fatalf("NewAudioStoreWithFs: %v", err)
	}
	return s
}

func TestAudioStoreSaveReadExists(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)

	ok, err := s.Exists(ctx, "s1_chunk_0.mp3")
	if err != nil || ok {
		t.Fatalf("Exists before save = %v, %v", ok, err)
	}
	if err := s.Save(ctx, "s1_chunk_0.mp3", []byte("ID3")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, err = s.Exists(ctx, "s1_chunk_0.mp3")
	if err != nil || !ok {
		t.Fatalf("Exists after save = %v, %v", ok, err)
	}
	data, err := s.Read(ctx, "s1_chunk_0.mp3")
	if err != nil || string(data) != "ID3" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := s.Read(ctx, "missing.mp3"); err == nil {
		t.Fatal("Read missing should fail")
	}
}

func TestAudioStoreURLAndHTTP(t *testing.T) {
	s := newMemStore(t)
	if got := s.URL("s1_complete.mp3"); got != "/static/audio/s1_complete.mp3" {
		t.Fatalf("URL = %q", got)
	}

	// 写入时只保留文件名
	if err := s.Save(context.Background(), "../s1.mp3", []byte("abc")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f, err := s.FileSystem().Open("/s1.mp3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "abc" {
		t.Fatalf("served = %q", data)
	}
}
