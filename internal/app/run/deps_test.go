package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/config"
)

func loadConfig(t *testing.T, body string) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0o644))
	cfg, err := config.Load(dir, nil)
	require.NoError(t, err)
	return cfg
}

func sourceNames(t *testing.T, deps Deps) []string {
	t.Helper()
	srcs, err := deps.Sponsors.Select(nil)
	require.NoError(t, err)
	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	return names
}

const bothSources = `github:
  login: yorickpeterse
opencollective:
  slug: inko-lang
packages:
  - owner: inko-lang
    repo: inko
`

func TestSponsorDeps_OnlySelectedNeedCredentials(t *testing.T) {
	t.Setenv(config.EnvGitHubToken, "")
	t.Setenv(config.EnvOpenCollectiveToken, "")
	cfg := loadConfig(t, bothSources)

	deps, err := SponsorDeps(cfg, []string{"opencollective"})
	require.NoError(t, err)
	assert.Equal(t, []string{"opencollective"}, sourceNames(t, deps))
	assert.NotNil(t, deps.Images)

	_, err = SponsorDeps(cfg, nil)
	assert.Equal(t, config.ErrCodeMissingCredential, config.Code(err), "默认选中 github，缺令牌")
}

func TestSponsorDeps_AllConfigured(t *testing.T) {
	t.Setenv(config.EnvGitHubToken, "gh-token")
	cfg := loadConfig(t, bothSources)

	deps, err := SponsorDeps(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"github", "opencollective"}, sourceNames(t, deps))
}

func TestSponsorDeps_Invalid(t *testing.T) {
	t.Setenv(config.EnvGitHubToken, "gh-token")

	cfg := loadConfig(t, bothSources)
	_, err := SponsorDeps(cfg, []string{"patreon"})
	assert.Equal(t, config.ErrCodeInvalid, config.Code(err))

	cfg = loadConfig(t, "opencollective:\n  slug: inko-lang\n")
	_, err = SponsorDeps(cfg, []string{"github"})
	assert.Equal(t, config.ErrCodeInvalid, config.Code(err), "选中但未配置")

	cfg = loadConfig(t, "log_level: info\n")
	_, err = SponsorDeps(cfg, nil)
	assert.Equal(t, config.ErrCodeInvalid, config.Code(err), "没有任何来源")
}

func TestPackageDeps(t *testing.T) {
	t.Setenv(config.EnvPackagesToken, "")
	cfg := loadConfig(t, bothSources)
	_, err := PackageDeps(cfg)
	assert.Equal(t, config.ErrCodeMissingCredential, config.Code(err))

	t.Setenv(config.EnvPackagesToken, "pkg-token")
	cfg = loadConfig(t, bothSources)
	deps, err := PackageDeps(cfg)
	require.NoError(t, err)
	assert.Len(t, deps.Versions, 1)

	cfg = loadConfig(t, "github:\n  login: x\n")
	_, err = PackageDeps(cfg)
	assert.Equal(t, config.ErrCodeInvalid, config.Code(err))
}
