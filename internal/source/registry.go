package source

import (
	"fmt"
	"strings"
)

// Registry 是赞助来源的只读注册表（按 name 索引，保留注册顺序）。
type Registry struct {
	byName map[string]SponsorSource
	order  []string
}

func NewRegistry(sources ...SponsorSource) (Registry, error) {
	byName := make(map[string]SponsorSource, len(sources))
	order := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == nil {
			return Registry{}, fmt.Errorf("source 不能为空")
		}
		name := normName(s.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("source.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 source：%q", name)
		}
		byName[name] = s
		order = append(order, name)
	}
	return Registry{byName: byName, order: order}, nil
}

// Select 按 names 的顺序取出来源；names 为空表示全部（注册顺序）。
// 未注册或重复的名字直接报错，避免静默少跑一个来源。
func (r Registry) Select(names []string) ([]SponsorSource, error) {
	if len(names) == 0 {
		names = r.order
	}
	out := make([]SponsorSource, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = normName(n)
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("重复的 source：%q", n)
		}
		seen[n] = struct{}{}
		s, ok := r.byName[n]
		if !ok {
			return nil, fmt.Errorf("source 未注册：%q（可用：%s）", n, strings.Join(r.order, ", "))
		}
		out = append(out, s)
	}
	return out, nil
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
