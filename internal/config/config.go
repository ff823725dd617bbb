package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/John-Robertt/sitedata/internal/domain"
)

const (
	// ErrCodeNotFound 表示找不到配置文件（cwd 下没有 sitedata.yaml，或 --config 指向的文件不存在）。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingCredential 表示某个被选中的来源缺少访问令牌。
	ErrCodeMissingCredential = domain.ErrCodeConfigMissingCredential
)

const (
	// FileName 是默认配置文件名（在 cwd 下查找）。
	FileName = "sitedata.yaml"
	// EnvPrefix 是配置项环境变量前缀，例如 SITEDATA_CONCURRENCY。
	EnvPrefix = "SITEDATA"

	DefaultImageWidth  = 100
	DefaultHTTPTimeout = 30 * time.Second
	MaxConcurrency     = 64
)

// 各来源的访问令牌环境变量（可写在 <root>/.env）。
const (
	EnvGitHubToken         = "GITHUB_ACCESS_TOKEN"
	EnvOpenCollectiveToken = "OPENCOLLECTIVE_ACCESS_TOKEN"
	EnvPackagesToken       = "PACKAGES_ACCESS_TOKEN"
)

// 凭证名（与 Credential 的参数对应）。
const (
	CredGitHub         = "github"
	CredOpenCollective = "opencollective"
	CredPackages       = "packages"
)

// Config 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type Config struct {
	File string // 实际读取的配置文件（绝对路径）
	Root string // 站点根目录（绝对路径）

	LogLevel    string
	Concurrency int
	ImageWidth  int
	HTTPTimeout time.Duration

	GitHub         GitHubConfig
	OpenCollective OpenCollectiveConfig
	Packages       []PackageRef

	credentials map[string]string
}

type GitHubConfig struct {
	Login    string `mapstructure:"login"`
	Endpoint string `mapstructure:"endpoint"`
}

type OpenCollectiveConfig struct {
	Slug    string `mapstructure:"slug"`
	BaseURL string `mapstructure:"base_url"`
}

// PackageRef 指向一个需要生成版本快照的 GitHub 仓库。
type PackageRef struct {
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`
}

type fileConfig struct {
	Root           string               `mapstructure:"root"`
	LogLevel       string               `mapstructure:"log_level"`
	Concurrency    int                  `mapstructure:"concurrency"`
	ImageWidth     int                  `mapstructure:"image_width"`
	HTTPTimeout    time.Duration        `mapstructure:"http_timeout"`
	GitHub         GitHubConfig         `mapstructure:"github"`
	OpenCollective OpenCollectiveConfig `mapstructure:"opencollective"`
	Packages       []PackageRef         `mapstructure:"packages"`
}

// 派生路径（相对 Root）。
const (
	SponsorsSnapshot = "data/sponsors.yml"
	PackagesSnapshot = "data/packages.yml"
	PublicDir        = "source"
	ImagesDir        = "source/images/sponsors"
)

func (c Config) SponsorsPath() string { return filepath.Join(c.Root, filepath.FromSlash(SponsorsSnapshot)) }
func (c Config) PackagesPath() string { return filepath.Join(c.Root, filepath.FromSlash(PackagesSnapshot)) }
func (c Config) PublicRoot() string   { return filepath.Join(c.Root, PublicDir) }
func (c Config) ImagesPath() string   { return filepath.Join(c.Root, filepath.FromSlash(ImagesDir)) }

// Credential 返回指定来源的令牌；缺失时返回 config_missing_credential。
// 只有真正要访问该来源时才调用，未选中的来源不要求凭证。
func (c Config) Credential(name string) (string, error) {
	tok := strings.TrimSpace(c.credentials[name])
	if tok == "" {
		return "", &Error{Code: ErrCodeMissingCredential, Path: c.File, Err: fmt.Errorf("%s 缺少访问令牌（环境变量 %s）", name, credentialEnv(name))}
	}
	return tok, nil
}

func credentialEnv(name string) string {
	switch name {
	case CredGitHub:
		return EnvGitHubToken
	case CredOpenCollective:
		return EnvOpenCollectiveToken
	case CredPackages:
		return EnvPackagesToken
	default:
		return strings.ToUpper(name) + "_ACCESS_TOKEN"
	}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Flag 名（由 CLI 注册，Load 通过 viper 绑定）。
const (
	FlagConfig      = "config"
	FlagRoot        = "root"
	FlagLogLevel    = "log-level"
	FlagConcurrency = "concurrency"
)

// Load 发现并读取配置文件，合并环境变量与命令行参数，返回最终配置。
//
// 发现规则（固定）：
// - --config 指定：必须存在
// - 否则读取 <cwd>/sitedata.yaml（必选）
//
// 覆盖优先级（viper）：flag（显式指定）> SITEDATA_* 环境变量 > 配置文件 > 默认值。
// root 未配置时取配置文件所在目录；相对路径以 cwd 为基准。
// 凭证从环境变量读取，<root>/.env 只补充未设置的变量。
func Load(cwd string, flags *pflag.FlagSet) (Config, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 所有 key 都要有默认值，AutomaticEnv 的覆盖才会在 Unmarshal 时生效。
	v.SetDefault("root", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("concurrency", runtime.NumCPU())
	v.SetDefault("image_width", DefaultImageWidth)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("github.login", "")
	v.SetDefault("github.endpoint", "https://api.github.com/graphql")
	v.SetDefault("opencollective.slug", "")
	v.SetDefault("opencollective.base_url", "https://opencollective.com")

	if flags != nil {
		for key, name := range map[string]string{
			"root":        FlagRoot,
			"log_level":   FlagLogLevel,
			"concurrency": FlagConcurrency,
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, &Error{Code: ErrCodeInvalid, Path: name, Err: err}
				}
			}
		}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	if flags != nil {
		if f := flags.Lookup(FlagConfig); f != nil && strings.TrimSpace(f.Value.String()) != "" {
			cfgPath = absCleanFrom(cwdAbs, f.Value.String())
		}
	}
	if fi, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) {
			return Config{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	} else if fi.IsDir() {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.New("是目录，不是文件")}
	}

	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	root := filepath.Dir(cfgPath)
	if strings.TrimSpace(fc.Root) != "" {
		root = absCleanFrom(cwdAbs, fc.Root)
	}

	// .env 可选；godotenv.Load 不覆盖已存在的环境变量。
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !os.IsNotExist(err) {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: filepath.Join(root, ".env"), Err: err}
	}

	return normalize(cfgPath, root, fc)
}

func normalize(cfgPath, root string, fc fileConfig) (Config, error) {
	invalid := func(err error) (Config, error) {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	level := strings.ToLower(strings.TrimSpace(fc.LogLevel))
	switch level {
	case "trace", "debug", "info", "warn", "error":
	case "":
		level = "info"
	default:
		return invalid(fmt.Errorf("log_level 只能是 trace/debug/info/warn/error，实际是 %q", fc.LogLevel))
	}

	// 范围 [1, 64]；超出截断。
	concurrency := fc.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	width := fc.ImageWidth
	if width <= 0 {
		return invalid(fmt.Errorf("image_width 必须为正数，实际是 %d", fc.ImageWidth))
	}
	timeout := fc.HTTPTimeout
	if timeout <= 0 {
		return invalid(fmt.Errorf("http_timeout 必须为正数，实际是 %s", fc.HTTPTimeout))
	}

	for _, field := range []struct{ name, raw string }{
		{"github.endpoint", fc.GitHub.Endpoint},
		{"opencollective.base_url", fc.OpenCollective.BaseURL},
	} {
		if err := validateHTTPURL(field.raw); err != nil {
			return invalid(fmt.Errorf("%s %w", field.name, err))
		}
	}

	seen := map[string]struct{}{}
	packages := make([]PackageRef, 0, len(fc.Packages))
	for i, p := range fc.Packages {
		p.Owner = strings.TrimSpace(p.Owner)
		p.Repo = strings.TrimSpace(p.Repo)
		if p.Owner == "" || p.Repo == "" {
			return invalid(fmt.Errorf("packages[%d] 缺少 owner/repo", i))
		}
		key := strings.ToLower(p.Owner + "/" + p.Repo)
		if _, dup := seen[key]; dup {
			return invalid(fmt.Errorf("packages 重复：%s/%s", p.Owner, p.Repo))
		}
		seen[key] = struct{}{}
		packages = append(packages, p)
	}

	return Config{
		File:        cfgPath,
		Root:        root,
		LogLevel:    level,
		Concurrency: concurrency,
		ImageWidth:  width,
		HTTPTimeout: timeout,
		GitHub: GitHubConfig{
			Login:    strings.TrimSpace(fc.GitHub.Login),
			Endpoint: strings.TrimSpace(fc.GitHub.Endpoint),
		},
		OpenCollective: OpenCollectiveConfig{
			Slug:    strings.TrimSpace(fc.OpenCollective.Slug),
			BaseURL: strings.TrimSpace(fc.OpenCollective.BaseURL),
		},
		Packages: packages,
		credentials: map[string]string{
			CredGitHub:         os.Getenv(EnvGitHubToken),
			CredOpenCollective: os.Getenv(EnvOpenCollectiveToken),
			CredPackages:       os.Getenv(EnvPackagesToken),
		},
	}, nil
}

func validateHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("不能为空")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
