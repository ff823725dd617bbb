// Package snapshot 读写站点模板消费的 YAML 快照（data/sponsors.yml、data/packages.yml）。
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/fsx"
)

// WriteSponsors 校验全部记录后原子替换 path。
//
// 约束：任一记录校验失败，文件保持不变（不会写出部分快照）。
func WriteSponsors(path string, records []domain.Sponsor) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("snapshot: 第 %d 条记录无效：%w", i, err)
		}
	}
	if records == nil {
		records = []domain.Sponsor{}
	}
	b, err := encode(records)
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

// ReadSponsors 严格解析已落盘的快照（未知 key 报错，归为 SchemaError）；空文档视为空列表。
func ReadSponsors(path string) ([]domain.Sponsor, error) {
	var out []domain.Sponsor
	if err := readFile(path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Sponsor{}
	}
	return out, nil
}

// WriteProjects 原子替换 path。
func WriteProjects(path string, projects []domain.Project) error {
	out := make([]domain.Project, len(projects))
	for i, p := range projects {
		if p.Owner == "" || p.Name == "" {
			return fmt.Errorf("snapshot: 第 %d 个项目缺少 owner/name", i)
		}
		if p.Versions == nil {
			p.Versions = []domain.Version{}
		}
		out[i] = p
	}
	b, err := encode(out)
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("snapshot: 编码失败：%w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: 编码失败：%w", err)
	}
	return buf.Bytes(), nil
}

func readFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decode(f, v)
}

func decode(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domain.SchemaError{Source: "snapshot", Err: err}
	}
	return nil
}

func writeFile(path string, b []byte) error {
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	return fsx.WriteFileAtomic(dir, name, b)
}
