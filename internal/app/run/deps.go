package run

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/infra/httpx"
	"github.com/John-Robertt/sitedata/internal/source"
	"github.com/John-Robertt/sitedata/internal/source/ghsponsors"
	"github.com/John-Robertt/sitedata/internal/source/ghtags"
	"github.com/John-Robertt/sitedata/internal/source/opencollective"
)

// Deps 是一次运行用到的外部依赖。CLI 用 SponsorDeps/PackageDeps 从配置构造，测试直接注入。
type Deps struct {
	Sponsors source.Registry
	Versions []source.VersionSource
	Images   *http.Client // 图片下载客户端，不带凭证
	Observer Observer
	Now      func() time.Time
}

type sponsorBuilder struct {
	name       string
	configured func(config.Config) bool
	build      func(config.Config) (source.SponsorSource, error)
}

// 注册顺序即默认抓取顺序。
var sponsorBuilders = []sponsorBuilder{
	{
		name:       ghsponsors.Name,
		configured: func(c config.Config) bool { return c.GitHub.Login != "" },
		build: func(c config.Config) (source.SponsorSource, error) {
			tok, err := c.Credential(config.CredGitHub)
			if err != nil {
				return nil, err
			}
			hc, err := httpx.NewAPIClient(tok, c.HTTPTimeout)
			if err != nil {
				return nil, err
			}
			return ghsponsors.New(ghsponsors.Options{Login: c.GitHub.Login, Endpoint: c.GitHub.Endpoint, HTTP: hc})
		},
	},
	{
		name:       opencollective.Name,
		configured: func(c config.Config) bool { return c.OpenCollective.Slug != "" },
		build: func(c config.Config) (source.SponsorSource, error) {
			// members.json 是公开接口；令牌可选。
			hc := httpx.NewPublicClient(c.HTTPTimeout)
			if tok, err := c.Credential(config.CredOpenCollective); err == nil {
				if hc, err = httpx.NewAPIClient(tok, c.HTTPTimeout); err != nil {
					return nil, err
				}
			}
			return opencollective.New(opencollective.Options{Slug: c.OpenCollective.Slug, BaseURL: c.OpenCollective.BaseURL, HTTP: hc})
		},
	},
}

// SponsorDeps 只构造 names 选中的来源（为空表示全部已配置的来源）。
//
// 约束：
// - 未选中的来源不要求凭证
// - 选中但未配置（login/slug 为空）或未知的名字：config_invalid
func SponsorDeps(cfg config.Config, names []string) (Deps, error) {
	invalid := func(err error) (Deps, error) {
		return Deps{}, &config.Error{Code: config.ErrCodeInvalid, Path: cfg.File, Err: err}
	}

	known := make([]string, 0, len(sponsorBuilders))
	for _, b := range sponsorBuilders {
		known = append(known, b.name)
	}

	want := map[string]struct{}{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		want[n] = struct{}{}
	}
	for n := range want {
		if !slices.Contains(known, n) {
			return invalid(fmt.Errorf("未知的 source：%q（可用：%s）", n, strings.Join(known, ", ")))
		}
	}

	built := make([]source.SponsorSource, 0, len(sponsorBuilders))
	for _, b := range sponsorBuilders {
		if len(want) > 0 {
			if _, ok := want[b.name]; !ok {
				continue
			}
			if !b.configured(cfg) {
				return invalid(fmt.Errorf("source %q 已选中但未配置", b.name))
			}
		} else if !b.configured(cfg) {
			continue
		}
		s, err := b.build(cfg)
		if err != nil {
			return Deps{}, err
		}
		built = append(built, s)
	}
	if len(built) == 0 {
		return invalid(errors.New("没有已配置的赞助来源（github.login / opencollective.slug）"))
	}

	reg, err := source.NewRegistry(built...)
	if err != nil {
		return Deps{}, err
	}
	return Deps{Sponsors: reg, Images: httpx.NewImageClient(cfg.HTTPTimeout)}, nil
}

// PackageDeps 为 cfg.Packages 中的每个仓库构造一个标签来源（共用同一个带凭证的客户端）。
func PackageDeps(cfg config.Config) (Deps, error) {
	if len(cfg.Packages) == 0 {
		return Deps{}, &config.Error{Code: config.ErrCodeInvalid, Path: cfg.File, Err: errors.New("packages 为空")}
	}
	tok, err := cfg.Credential(config.CredPackages)
	if err != nil {
		return Deps{}, err
	}
	hc, err := httpx.NewAPIClient(tok, cfg.HTTPTimeout)
	if err != nil {
		return Deps{}, err
	}

	out := make([]source.VersionSource, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		s, err := ghtags.New(ghtags.Options{Owner: p.Owner, Repo: p.Repo, Endpoint: cfg.GitHub.Endpoint, HTTP: hc})
		if err != nil {
			return Deps{}, err
		}
		out = append(out, s)
	}
	return Deps{Versions: out}, nil
}
