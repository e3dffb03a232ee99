// Package pdf 把排版结果绘制为 PDF：定位背景与字体、按字宽度量、逐页输出
package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Assets 背景模板与字体，路径为空表示未找到
type Assets struct {
	Background string
	Font       string
}

// LocateAssets 在候选路径中各取第一个存在的文件
func LocateAssets(backgrounds, fonts []string) Assets {
	return Assets{
		Background: firstExisting(backgrounds),
		Font:       firstExisting(fonts),
	}
}

func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}
	return img, nil
}
