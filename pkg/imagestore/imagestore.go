package imagestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Store 图片存储协作方
// 入参为data URI，返回可对外引用的地址
type Store interface {
	Persist(ctx context.Context, filename, dataURI string) (string, error)
}

var dataURIPattern = regexp.MustCompile(`^data:image/([0-9a-zA-Z+.-]+);base64,`)

// ParseSubtype 从data URI解析图片子类型
// 解析失败说明载荷畸形，调用方必须在任何存储动作前拒绝
func ParseSubtype(dataURI string) (string, error) {
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return "", fmt.Errorf("malformed image data uri")
	}
	return m[1], nil
}

// diskStore 本地磁盘图片存储
type diskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore 创建本地磁盘图片存储
func NewDiskStore(dir, baseURL string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create avatar dir: %v", err)
	}
	return &diskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Persist 落盘图片并返回访问地址
func (s *diskStore) Persist(ctx context.Context, filename, dataURI string) (string, error) {
	loc := dataURIPattern.FindStringIndex(dataURI)
	if loc == nil {
		return "", fmt.Errorf("malformed image data uri")
	}

	payload, err := base64.StdEncoding.DecodeString(dataURI[loc[1]:])
	if err != nil {
		return "", fmt.Errorf("failed to decode image payload: %v", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, filename), payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %v", err)
	}

	return s.baseURL + "/" + filename, nil
}
