package source

import (
	"context"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// SponsorSource 把“平台差异”限制在各自的子包内部；核心流程只依赖统一接口与 domain.Sponsor。
//
// 约束：
// - 返回的记录已经过滤（只含活跃且有档位的赞助者）并完成规范化（档位、金额、日期）
// - Image 始终为 nil，远端头像地址放在 ImageURL，由 media 阶段解析
// - 任一分页失败即整体失败，不返回部分结果
// - 不做缓存、不做重试
type SponsorSource interface {
	Name() string
	FetchActiveContributors(ctx context.Context) ([]domain.Sponsor, error)
}

// VersionSource 产出单个仓库的版本快照。
//
// 约束：versions 只包含严格 MAJOR.MINOR.PATCH 的标签，保持上游返回顺序。
type VersionSource interface {
	Name() string
	FetchMatchingVersions(ctx context.Context) (domain.Project, error)
}
