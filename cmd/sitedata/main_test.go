package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/domain"
)

const snapshotYAML = `- id: gh-1
  kind: public
  name: Alice
  image: images/sponsors/gh-1.png
  website: null
  total_donated: 500
  tier: backer
  currency_symbol: $
  created_at: "2021-01-01"
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func decodeReport(t *testing.T, stdout bytes.Buffer) domain.RunReport {
	t.Helper()
	var rr domain.RunReport
	dec := json.NewDecoder(&stdout)
	require.NoError(t, dec.Decode(&rr), "stdout 不是合法的 RunReport JSON：%q", stdout.String())
	require.False(t, dec.More(), "stdout 只能包含一个 JSON 文档")
	return rr
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// stdout 非 TTY 时只能输出一个 RunReport JSON；摘要与日志走 stderr。
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sitedata.yaml"), "log_level: warn\n")
	writeFile(t, filepath.Join(root, "data", "sponsors.yml"), snapshotYAML)
	writeFile(t, filepath.Join(root, "source", "images", "sponsors", "gh-1.png"), "keep")
	writeFile(t, filepath.Join(root, "source", "images", "sponsors", "gh-9.png"), "orphan")
	t.Chdir(root)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"prune", "--dry-run"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr=%s", stderr.String())

	rr := decodeReport(t, stdout)
	assert.Equal(t, domain.StatusOK, rr.Status)
	assert.Equal(t, "prune", rr.Command)
	assert.True(t, rr.DryRun)
	assert.Equal(t, []string{"gh-9.png"}, rr.Pruned)
	_, err := os.Stat(filepath.Join(root, "source", "images", "sponsors", "gh-9.png"))
	assert.NoError(t, err, "dry-run 不应删除文件")
	assert.True(t, strings.Contains(stderr.String(), "完成：command=prune status=ok"), "stderr 缺少完成摘要：%q", stderr.String())
}

func TestCLI_ConfigNotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitFailed, execute([]string{"sponsors"}, &stdout, &stderr))
	rr := decodeReport(t, stdout)
	assert.Equal(t, domain.StatusFailed, rr.Status)
	assert.Equal(t, domain.ErrCodeConfigNotFound, rr.ErrorCode)
}

func TestCLI_MissingCredential(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sitedata.yaml"), "github:\n  login: someone\n")
	t.Chdir(root)
	t.Setenv("GITHUB_ACCESS_TOKEN", "")

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitFailed, execute([]string{"sponsors", "--log-level", "error"}, &stdout, &stderr))
	rr := decodeReport(t, stdout)
	assert.Equal(t, domain.ErrCodeConfigMissingCredential, rr.ErrorCode)
}

func TestCLI_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"unknown"},
		{"sponsors", "--bogus"},
		{"packages", "extra"},
		{"--concurrency", "many", "prune"},
	} {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, exitUsage, execute(args, &stdout, &stderr), "args=%v", args)
		assert.Zero(t, stdout.Len(), "参数错误时 stdout 应为空：%q", stdout.String())
	}
}
