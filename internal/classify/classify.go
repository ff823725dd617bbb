// Package classify 是无 I/O 的规范化函数集：档位、金额、日期、版本号。
//
// 约束：所有函数必须是确定性的纯函数（相同输入 => 相同输出），当前时间由调用方传入。
package classify

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// ErrUnknownAmount 表示月付金额不在固定档位表中。
var ErrUnknownAmount = errors.New("classify: 月付金额没有对应档位")

// monthlyTiers 是 GitHub Sponsors 的“月付金额（美分）-> 档位”固定映射。
// 新增档位必须在这里显式登记；未登记金额一律报错，不做就近归档。
var monthlyTiers = map[int64]domain.Tier{
	500:   domain.TierBacker,
	10000: domain.TierSponsor,
}

// TierForMonthlyPrice 按月付金额（最小货币单位）查找档位。
func TierForMonthlyPrice(cents int64) (domain.Tier, error) {
	if t, ok := monthlyTiers[cents]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w：%d（$%.2f）", ErrUnknownAmount, cents, float64(cents)/100)
}

// MonthsElapsed 统计从 created 起、按自然月逐月递进、直到超过 today 为止经过的月数（含首月）。
//
// 例：created=2021-01-15，today=2021-04-10 => 1/15、2/15、3/15 三次都不晚于 today，结果为 3。
// 月末日期按目标月天数截断（1/31 -> 2/28 -> 3/28），与逐月累加的语义一致。
// created 晚于 today 时返回 0。
func MonthsElapsed(created, today domain.Date) int {
	n := 0
	cur := created
	for !cur.After(today) {
		n++
		cur = AddMonthClamped(cur)
	}
	return n
}

// AddMonthClamped 把日期推进一个自然月；目标月没有该日时取月末。
func AddMonthClamped(d domain.Date) domain.Date {
	y, m := d.Year(), d.Month()+1
	if m > time.December {
		m = time.January
		y++
	}
	day := d.Day()
	if last := daysIn(y, m); day > last {
		day = last
	}
	return domain.NewDate(y, m, day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TotalDonated = 月付金额 × 月数。
func TotalDonated(monthlyCents int64, months int) int64 {
	if months <= 0 {
		return 0
	}
	return monthlyCents * int64(months)
}

// MajorToMinor 把主单位金额（例如 12.5 欧元）换算为最小单位整数（1250 分），四舍五入。
func MajorToMinor(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("金额无效：%v", amount)
	}
	if amount < 0 {
		return 0, fmt.Errorf("金额不能为负数：%v", amount)
	}
	cents := math.Round(amount * 100)
	if cents > math.MaxInt64/2 {
		return 0, fmt.Errorf("金额溢出：%v", amount)
	}
	return int64(cents), nil
}

var lower = cases.Lower(language.Und)

// NormalizeTier 把上游提供的档位名规范为小写；空白视为“无档位”。
func NormalizeTier(s string) (domain.Tier, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return domain.Tier(lower.String(s)), true
}

// ParseDate 依次尝试 layouts 解析时间，取其 UTC 日期部分。
func ParseDate(s string, layouts ...string) (domain.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Date{}, errors.New("日期为空")
	}
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t.UTC()), nil
		}
	}
	return domain.Date{}, fmt.Errorf("无法解析日期 %q", s)
}

// FormatVersionDate 把 RFC3339 提交时间格式化为快照的 "YYYY-MM-DD HH:MM"（UTC）。
func FormatVersionDate(s string) (string, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("提交时间无效 %q：%w", s, err)
	}
	return t.UTC().Format(domain.VersionDateLayout), nil
}

var strictVersionRE = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// NormalizeVersion 去掉一个可选的前导 'v'，只接受严格的 MAJOR.MINOR.PATCH。
// 预发布、分支标签等一律返回 false（静默丢弃）。
func NormalizeVersion(tag string) (string, bool) {
	name := strings.TrimPrefix(tag, "v")
	if !strictVersionRE.MatchString(name) {
		return "", false
	}
	return name, true
}

// LatestVersion 返回语义化版本最大的一个；空输入返回 nil。
func LatestVersion(versions []domain.Version) *string {
	var (
		best     *semver.Version
		bestName string
	)
	for _, v := range versions {
		sv, err := semver.NewVersion(v.Name)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best = sv
			bestName = v.Name
		}
	}
	if best == nil {
		return nil
	}
	return &bestName
}
