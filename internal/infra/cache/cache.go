package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/sitedata/internal/infra/fsx"
)

// Store 读写 <root>/cache/images.json：记录每个头像上次下载的时间与上游 Last-Modified。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 文件缺失等价于空索引（首次运行）
// - 条目只是“提示”，文件本身不存在时由调用方视为未缓存
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

const (
	dirName  = "cache"
	fileName = "images.json"
	version  = 1
)

// Entry 是单个头像的缓存记录。
type Entry struct {
	File         string    `json:"file"`                    // 文件名（不含目录），例如 gh-42.png
	FetchedAt    time.Time `json:"fetched_at"`              // 最近一次写入本地文件的时间（UTC）
	LastModified string    `json:"last_modified,omitempty"` // 上游 Last-Modified 原文
}

// Index 以记录 id 为键。
type Index map[string]Entry

type fileFormat struct {
	Version int   `json:"version"`
	Images  Index `json:"images"`
}

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// Path 返回索引文件的绝对路径。
func (s Store) Path() string {
	return filepath.Join(s.Root, dirName, fileName)
}

// Load 读取索引；文件不存在返回空索引。
func (s Store) Load() (Index, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, nil
		}
		return nil, err
	}
	var f fileFormat
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("cache: 索引文件损坏 %s：%w", s.Path(), err)
	}
	if f.Version != version {
		return nil, fmt.Errorf("cache: 不支持的索引版本 %d（%s）", f.Version, s.Path())
	}
	if f.Images == nil {
		f.Images = Index{}
	}
	return f.Images, nil
}

// Save 原子写入索引。encoding/json 按键排序输出 map，文件内容对相同索引是稳定的。
func (s Store) Save(idx Index) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if idx == nil {
		idx = Index{}
	}
	for id, e := range idx {
		if strings.TrimSpace(id) == "" {
			return errors.New("cache: id 不能为空")
		}
		if e.File == "" || e.File != filepath.Base(e.File) {
			return fmt.Errorf("cache: 条目 %q 的文件名非法：%q", id, e.File)
		}
	}
	b, err := json.MarshalIndent(fileFormat{Version: version, Images: idx}, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(s.Root, dirName), fileName, b)
}
