package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/sitedata/internal/app/run"
	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/logx"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// errRunFailed 表示命令已执行且 report 已输出，但结果是失败（退出码 1）。
var errRunFailed = errors.New("run failed")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRunFailed):
		return exitFailed
	default:
		// cobra 的参数/命令错误。
		fmt.Fprintf(stderr, "参数错误：%v\n\n使用 \"sitedata --help\" 查看用法。\n", err)
		return exitUsage
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitedata",
		Short:         "拉取赞助者与版本数据，生成站点使用的 YAML 快照",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.String(config.FlagConfig, "", "配置文件路径（默认 ./"+config.FileName+"）")
	pf.String(config.FlagRoot, "", "站点根目录（默认配置文件所在目录）")
	pf.String(config.FlagLogLevel, "", "日志级别：trace|debug|info|warn|error")
	pf.Int(config.FlagConcurrency, 0, "图片下载并发数（1-64，默认 CPU 核数）")

	sponsors := &cobra.Command{
		Use:   "sponsors",
		Short: "抓取赞助者、下载头像、写入 data/sponsors.yml 并清理孤儿图片",
		Args:  cobra.NoArgs,
	}
	sf := sponsors.Flags()
	sf.StringSlice("source", nil, "只抓取指定来源（github,opencollective）；默认全部已配置的来源")
	sf.Bool("dry-run", false, "只抓取与统计，不下载、不写入、不删除")
	sf.Bool("no-prune", false, "写入快照后不清理孤儿图片")
	sponsors.RunE = func(cmd *cobra.Command, _ []string) error {
		names, _ := cmd.Flags().GetStringSlice("source")
		dry, _ := cmd.Flags().GetBool("dry-run")
		noPrune, _ := cmd.Flags().GetBool("no-prune")
		return runCommand(cmd, run.CommandSponsors, run.Options{DryRun: dry, NoPrune: noPrune, Sources: names}, stdout, stderr)
	}

	packages := &cobra.Command{
		Use:   "packages",
		Short: "读取仓库标签，写入 data/packages.yml",
		Args:  cobra.NoArgs,
	}
	packages.Flags().Bool("dry-run", false, "只抓取与统计，不写入快照")
	packages.RunE = func(cmd *cobra.Command, _ []string) error {
		dry, _ := cmd.Flags().GetBool("dry-run")
		return runCommand(cmd, run.CommandPackages, run.Options{DryRun: dry}, stdout, stderr)
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "按 data/sponsors.yml 清理不再引用的头像",
		Args:  cobra.NoArgs,
	}
	prune.Flags().Bool("dry-run", false, "只列出将删除的文件")
	prune.RunE = func(cmd *cobra.Command, _ []string) error {
		dry, _ := cmd.Flags().GetBool("dry-run")
		return runCommand(cmd, run.CommandPrune, run.Options{DryRun: dry}, stdout, stderr)
	}

	root.AddCommand(sponsors, packages, prune)
	return root
}

func runCommand(cmd *cobra.Command, command string, opts run.Options, stdout, stderr io.Writer) error {
	started := time.Now()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return errRunFailed
	}

	cfg, err := config.Load(cwd, cmd.Flags())
	if err != nil {
		root, _ := filepath.Abs(cwd)
		emitReport(stdout, stderr, failedReport(command, root, opts.DryRun, started, config.Code(err), err))
		return errRunFailed
	}

	log := logx.New(cfg.LogLevel, stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, _ = logx.WithRun(ctx, log, command)

	deps, err := buildDeps(command, cfg, opts)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("初始化失败")
		emitReport(stdout, stderr, failedReport(command, cfg.Root, opts.DryRun, started, run.ErrorCode(err), err))
		return errRunFailed
	}

	var ui *progressUI
	if logx.IsTerminal(stderr) {
		ui = newProgressUI(stderr)
		defer ui.Stop()
		deps.Observer = ui
	}

	rr, err := run.Execute(ctx, command, cfg, deps, opts)
	emitReport(stdout, stderr, rr)
	if err != nil || rr.Failed() {
		return errRunFailed
	}
	return nil
}

func buildDeps(command string, cfg config.Config, opts run.Options) (run.Deps, error) {
	switch command {
	case run.CommandSponsors:
		return run.SponsorDeps(cfg, opts.Sources)
	case run.CommandPackages:
		return run.PackageDeps(cfg)
	default:
		return run.Deps{}, nil
	}
}

func failedReport(command, root string, dryRun bool, started time.Time, code string, err error) domain.RunReport {
	if code == "" {
		code = domain.ErrCodeInternal
	}
	rr := domain.RunReport{
		Command:    command,
		Root:       root,
		DryRun:     dryRun,
		StartedAt:  started,
		FinishedAt: time.Now(),
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

// emitReport 按输出契约写出结果：
// - stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON，摘要走 stderr
// - stdout 是 TTY：输出人类可读摘要
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	summary := summaryLine(rr)
	if logx.IsTerminal(stdout) {
		fmt.Fprintln(stdout, summary)
		if rr.Failed() {
			fmt.Fprintf(stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summary)
}

func summaryLine(rr domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "完成：command=%s status=%s", rr.Command, rr.Status)
	for _, s := range rr.Sources {
		fmt.Fprintf(&b, " %s=%d", s.Name, s.Records)
	}
	if rr.Command == run.CommandSponsors {
		fmt.Fprintf(&b, " downloaded=%d current=%d skipped=%d", rr.Images.Downloaded, rr.Images.Current, rr.Images.Skipped)
		if rr.DryRun {
			fmt.Fprintf(&b, " pending=%d", rr.Images.Pending)
		}
	}
	if rr.Command != run.CommandPackages {
		fmt.Fprintf(&b, " pruned=%d", len(rr.Pruned))
	}
	if rr.Failed() {
		fmt.Fprintf(&b, " error_code=%s", rr.ErrorCode)
	}
	return b.String()
}
