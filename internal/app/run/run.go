// Package run 编排一次命令的各个阶段，并产出对外稳定的 RunReport。
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/cache"
	"github.com/John-Robertt/sitedata/internal/media"
	"github.com/John-Robertt/sitedata/internal/prune"
	"github.com/John-Robertt/sitedata/internal/snapshot"
)

// 命令名（写入 RunReport.command）。
const (
	CommandSponsors = "sponsors"
	CommandPackages = "packages"
	CommandPrune    = "prune"
)

// Options 是命令行层面的开关。
type Options struct {
	DryRun  bool
	NoPrune bool
	Sources []string // 只对 sponsors 生效；为空表示全部
}

// Sponsors 抓取全部来源 → 解析头像 → 写快照 → 清理孤儿图片。
//
// 约束：
// - 来源按顺序串行抓取；任一失败立即中止，已有快照保持不变
// - 快照是最后一个会修改数据的阶段，prune 只在快照写入成功后运行
// - dry-run：不下载、不写快照、不删除（prune 只列出将删除的文件）
// - 返回的 report 已 Finalize；失败时 error 非 nil 且 report.error_code 已填
func Sponsors(ctx context.Context, cfg config.Config, deps Deps, opts Options) (domain.RunReport, error) {
	r := begin(ctx, CommandSponsors, cfg, deps, opts)

	srcs, err := deps.Sponsors.Select(opts.Sources)
	if err != nil {
		return r.fail(StageConfig, &config.Error{Code: config.ErrCodeInvalid, Path: cfg.File, Err: err})
	}
	if len(srcs) == 0 {
		return r.fail(StageConfig, &config.Error{Code: config.ErrCodeInvalid, Path: cfg.File, Err: errors.New("没有可用的赞助来源")})
	}

	var records []domain.Sponsor
	for _, s := range srcs {
		started := time.Now()
		got, err := s.FetchActiveContributors(r.ctx)
		if err != nil {
			return r.fail(StageFetch, err)
		}
		records = append(records, got...)
		r.report.Sources = append(r.report.Sources, domain.SourceResult{Name: s.Name(), Records: len(got)})
		r.phase(StageFetch, map[string]any{"source": s.Name(), "records": len(got)}, time.Since(started))
	}

	started := time.Now()
	mgr := &media.Manager{
		Client:     deps.Images,
		Dir:        cfg.ImagesPath(),
		PublicRoot: cfg.PublicRoot(),
		Width:      cfg.ImageWidth,
		Store:      cache.New(cfg.Root, opts.DryRun),
		DryRun:     opts.DryRun,
		Observer:   r.obs,
		Now:        deps.Now,
	}
	resolved, sum, err := mgr.ResolveAll(r.ctx, records, cfg.Concurrency)
	if err != nil {
		return r.fail(StageMedia, err)
	}
	r.report.Images = sum
	r.phase(StageMedia, map[string]any{
		"downloaded": sum.Downloaded,
		"current":    sum.Current,
		"skipped":    sum.Skipped,
		"pending":    sum.Pending,
	}, time.Since(started))

	if !opts.DryRun {
		started = time.Now()
		if err := snapshot.WriteSponsors(cfg.SponsorsPath(), resolved); err != nil {
			return r.fail(StageSnapshot, err)
		}
		r.report.Snapshot = config.SponsorsSnapshot
		r.phase(StageSnapshot, map[string]any{"records": len(resolved), "path": config.SponsorsSnapshot}, time.Since(started))
	}

	if !opts.NoPrune {
		started = time.Now()
		removed, err := prune.New(cfg.ImagesPath(), opts.DryRun).Prune(resolved)
		if err != nil {
			return r.fail(StagePrune, err)
		}
		r.report.Pruned = removed
		r.phase(StagePrune, map[string]any{"removed": len(removed)}, time.Since(started))
	}

	return r.done()
}

// Packages 为每个配置的仓库读取版本列表并写入 packages 快照。
// 仓库之间串行；任一失败整次中止，快照保持不变。
func Packages(ctx context.Context, cfg config.Config, deps Deps, opts Options) (domain.RunReport, error) {
	r := begin(ctx, CommandPackages, cfg, deps, opts)

	if len(deps.Versions) == 0 {
		return r.fail(StageConfig, &config.Error{Code: config.ErrCodeInvalid, Path: cfg.File, Err: errors.New("packages 为空")})
	}

	projects := make([]domain.Project, 0, len(deps.Versions))
	for _, s := range deps.Versions {
		started := time.Now()
		p, err := s.FetchMatchingVersions(r.ctx)
		if err != nil {
			return r.fail(StageFetch, err)
		}
		projects = append(projects, p)
		r.report.Sources = append(r.report.Sources, domain.SourceResult{Name: p.FullName(), Records: len(p.Versions)})
		r.phase(StageFetch, map[string]any{"source": p.FullName(), "records": len(p.Versions)}, time.Since(started))
	}

	if !opts.DryRun {
		started := time.Now()
		if err := snapshot.WriteProjects(cfg.PackagesPath(), projects); err != nil {
			return r.fail(StageSnapshot, err)
		}
		r.report.Snapshot = config.PackagesSnapshot
		r.phase(StageSnapshot, map[string]any{"records": len(projects), "path": config.PackagesSnapshot}, time.Since(started))
	}
	return r.done()
}

// Prune 以已落盘的 sponsors 快照为准清理图片目录。
// 快照不存在视为失败：没有参照物时清理会删光整个目录。
func Prune(ctx context.Context, cfg config.Config, deps Deps, opts Options) (domain.RunReport, error) {
	r := begin(ctx, CommandPrune, cfg, deps, opts)

	started := time.Now()
	records, err := snapshot.ReadSponsors(cfg.SponsorsPath())
	if err != nil {
		return r.fail(StagePrune, fmt.Errorf("读取快照 %s 失败：%w", config.SponsorsSnapshot, err))
	}
	removed, err := prune.New(cfg.ImagesPath(), opts.DryRun).Prune(records)
	if err != nil {
		return r.fail(StagePrune, err)
	}
	r.report.Snapshot = config.SponsorsSnapshot
	r.report.Pruned = removed
	r.phase(StagePrune, map[string]any{"removed": len(removed)}, time.Since(started))
	return r.done()
}

type runner struct {
	ctx    context.Context
	log    *zerolog.Logger
	obs    Observer
	now    func() time.Time
	report domain.RunReport
}

func begin(ctx context.Context, command string, cfg config.Config, deps Deps, opts Options) *runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	obs := deps.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	r := &runner{
		ctx: ctx,
		log: zerolog.Ctx(ctx),
		obs: obs,
		now: now,
		report: domain.RunReport{
			Command:   command,
			Root:      cfg.Root,
			DryRun:    opts.DryRun,
			StartedAt: now(),
		},
	}
	r.log.Info().Str("root", cfg.Root).Bool("dry_run", opts.DryRun).Msg("run started")
	obs.OnStart(command, cfg, opts.DryRun)
	return r
}

func (r *runner) phase(name string, fields map[string]any, dur time.Duration) {
	r.log.Debug().Str("phase", name).Fields(fields).Dur("dur", dur).Msg("phase done")
	r.obs.OnPhaseDone(name, fields, dur)
}

func (r *runner) fail(stage string, err error) (domain.RunReport, error) {
	err = &StageError{Stage: stage, Err: err}
	r.report.ErrorCode = ErrorCode(err)
	r.report.ErrorMsg = err.Error()
	r.log.Error().Err(err).Str("error_code", r.report.ErrorCode).Msg("run failed")
	r.report.FinishedAt = r.now()
	r.report.Finalize()
	return r.report, err
}

func (r *runner) done() (domain.RunReport, error) {
	r.report.FinishedAt = r.now()
	r.report.Finalize()
	r.log.Info().
		Int("downloaded", r.report.Images.Downloaded).
		Int("pruned", len(r.report.Pruned)).
		Dur("elapsed", r.report.FinishedAt.Sub(r.report.StartedAt)).
		Msg("run finished")
	return r.report, nil
}

// Execute 按命令名分派（CLI 使用）。
func Execute(ctx context.Context, command string, cfg config.Config, deps Deps, opts Options) (domain.RunReport, error) {
	switch command {
	case CommandSponsors:
		return Sponsors(ctx, cfg, deps, opts)
	case CommandPackages:
		return Packages(ctx, cfg, deps, opts)
	case CommandPrune:
		return Prune(ctx, cfg, deps, opts)
	default:
		return domain.RunReport{}, fmt.Errorf("未知命令：%q", command)
	}
}
