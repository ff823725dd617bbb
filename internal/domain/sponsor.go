package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind 区分公开与匿名赞助者。
type Kind string

const (
	KindPublic  Kind = "public"
	KindPrivate Kind = "private"
)

// Tier 是贡献档位。GitHub Sponsors 由月付金额推导，Open Collective 直接提供。
type Tier string

const (
	TierBacker  Tier = "backer"
	TierSponsor Tier = "sponsor"
)

// Normalized 报告档位是否为规范形式：非空、无首尾空白、不含大写字母。
// Open Collective 的档位名不在固定枚举里，只要求规范形式。
func (t Tier) Normalized() bool {
	s := string(t)
	return s != "" && strings.TrimSpace(s) == s && !strings.ContainsFunc(s, unicode.IsUpper)
}

// AnonymousName 是匿名赞助者的固定展示名。
const AnonymousName = "Anonymous"

const (
	CurrencyUSD = "$"
	CurrencyEUR = "€"
)

// Sponsor 是快照中的一条赞助者记录。
//
// 字段顺序与 yaml key 是下游模板的兼容契约，不要调整。
// ImageURL 只在内存中存在：它是远端头像地址，由 media 解析为 Image（本地相对路径）。
type Sponsor struct {
	ID             *string `yaml:"id" json:"id"`
	Kind           Kind    `yaml:"kind" json:"kind"`
	Name           string  `yaml:"name" json:"name"`
	Image          *string `yaml:"image" json:"image"`
	Website        *string `yaml:"website" json:"website"`
	TotalDonated   int64   `yaml:"total_donated" json:"total_donated"`
	Tier           Tier    `yaml:"tier" json:"tier"`
	CurrencySymbol string  `yaml:"currency_symbol" json:"currency_symbol"`
	CreatedAt      Date    `yaml:"created_at" json:"created_at"`

	ImageURL string `yaml:"-" json:"-"`
}

// Key 返回缓存键（记录 id）；匿名记录返回空串。
func (s Sponsor) Key() string {
	if s.ID == nil {
		return ""
	}
	return *s.ID
}

// Validate 校验落盘前必须满足的不变量。
func (s Sponsor) Validate() error {
	if strings.TrimSpace(string(s.Tier)) == "" {
		return fmt.Errorf("赞助者 %q 缺少 tier", s.Name)
	}
	if !s.Tier.Normalized() {
		return fmt.Errorf("赞助者 %q 的 tier 未规范化：%q", s.Name, s.Tier)
	}
	if s.TotalDonated < 0 {
		return fmt.Errorf("赞助者 %q 的 total_donated 为负数：%d", s.Name, s.TotalDonated)
	}
	if s.CurrencySymbol == "" {
		return fmt.Errorf("赞助者 %q 缺少 currency_symbol", s.Name)
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("赞助者 %q 缺少 created_at", s.Name)
	}
	switch s.Kind {
	case KindPublic:
		if s.Key() == "" {
			return fmt.Errorf("公开赞助者 %q 缺少 id", s.Name)
		}
	case KindPrivate:
		if s.ID != nil || s.Image != nil || s.Website != nil {
			return fmt.Errorf("匿名赞助者不能带 id/image/website")
		}
	default:
		return fmt.Errorf("赞助者 %q 的 kind 无效：%q", s.Name, s.Kind)
	}
	return nil
}

// Anonymize 抹掉身份信息，只保留金额/档位/日期。
func (s Sponsor) Anonymize() Sponsor {
	s.Kind = KindPrivate
	s.ID = nil
	s.Name = AnonymousName
	s.Image = nil
	s.Website = nil
	s.ImageURL = ""
	return s
}

// StringPtr 把非空字符串转为指针；空白串返回 nil（快照中写 null）。
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
