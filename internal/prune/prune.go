// Package prune 删除图片目录中不再被快照引用的文件。
package prune

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// Pruner 以“记录引用的文件名集合”为准清理 Dir。
//
// 约束：
// - 只看 Dir 顶层匹配 "*.*" 的普通文件；子目录、隐藏文件（含原子写的临时文件）不动
// - 比较的是文件名（basename），不是完整路径
// - DryRun=true：只列出将删除的文件
// - 幂等：第二次运行不会再删除任何文件
type Pruner struct {
	Fs     afero.Fs
	Dir    string
	DryRun bool
}

// New 基于真实文件系统构造 Pruner。
func New(dir string, dryRun bool) Pruner {
	return Pruner{Fs: afero.NewOsFs(), Dir: dir, DryRun: dryRun}
}

// Prune 删除 records 未引用的图片，返回（将）删除的文件名（排序）。
func (p Pruner) Prune(records []domain.Sponsor) ([]string, error) {
	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Image == nil || strings.TrimSpace(*r.Image) == "" {
			continue
		}
		keep[path.Base(filepath.ToSlash(*r.Image))] = struct{}{}
	}

	fs := p.fs()
	matches, err := afero.Glob(fs, filepath.Join(p.Dir, "*.*"))
	if err != nil {
		return nil, fmt.Errorf("prune: 列出 %s 失败：%w", p.Dir, err)
	}

	var removed []string
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		fi, err := fs.Stat(m)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		if !p.DryRun {
			if err := fs.Remove(m); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("prune: 删除 %s 失败：%w", m, err)
			}
		}
		removed = append(removed, name)
	}
	sort.Strings(removed)
	return removed, nil
}

func (p Pruner) fs() afero.Fs {
	if p.Fs == nil {
		return afero.NewOsFs()
	}
	return p.Fs
}
