package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/sitedata/internal/app/run"
	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/media"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 约束：
// - 只写 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：图片阶段长时间没有完成事件时定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	images    int
	total     int
	downloads int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(command string, cfg config.Config, dryRun bool) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "apply"
	modeHint := ""
	if dryRun {
		mode = "dry-run"
		modeHint = " (不下载/不写入/不删除)"
	}

	fmt.Fprintf(p.w, "[%s] sitedata %s (%s)\n", now.Format("15:04:05"), command, mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", cfg.File)
	fmt.Fprintf(p.w, "  root: %s\n", cfg.Root)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	switch command {
	case run.CommandSponsors:
		fmt.Fprintf(p.w, "  concurrency: %d\n", cfg.Concurrency)
		fmt.Fprintf(p.w, "  image_width: %d\n", cfg.ImageWidth)
		fmt.Fprintln(p.w, "输出:")
		fmt.Fprintf(p.w, "  snapshot: %s\n", config.SponsorsSnapshot)
		fmt.Fprintf(p.w, "  images: %s\n", config.ImagesDir)
	case run.CommandPackages:
		fmt.Fprintf(p.w, "  packages: %s\n", formatPackages(cfg.Packages))
		fmt.Fprintln(p.w, "输出:")
		fmt.Fprintf(p.w, "  snapshot: %s\n", config.PackagesSnapshot)
	case run.CommandPrune:
		fmt.Fprintf(p.w, "  snapshot: %s\n", config.SponsorsSnapshot)
		fmt.Fprintf(p.w, "  images: %s\n", config.ImagesDir)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.StageFetch:
		fmt.Fprintf(p.w, "抓取: source=%s records=%d (%s)\n",
			strField(fields, "source"), intField(fields, "records"), formatShortDuration(dur),
		)
		if !p.tickerStarted {
			p.startTickerLocked()
		}
	case run.StageMedia:
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "图片: downloaded=%d current=%d skipped=%d pending=%d (%s)\n",
			intField(fields, "downloaded"),
			intField(fields, "current"),
			intField(fields, "skipped"),
			intField(fields, "pending"),
			formatShortDuration(dur),
		)
	case run.StageSnapshot:
		fmt.Fprintf(p.w, "快照: %s records=%d (%s)\n",
			strField(fields, "path"), intField(fields, "records"), formatShortDuration(dur),
		)
	case run.StagePrune:
		fmt.Fprintf(p.w, "清理: removed=%d (%s)\n", intField(fields, "removed"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnImageDone(idx, total int, id string, outcome media.Outcome, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.images = idx
	p.total = total
	if outcome == media.OutcomeDownloaded {
		p.downloads++
	}

	// skipped 没有网络请求，不逐条输出。
	if outcome != media.OutcomeSkipped {
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, id, strings.ToUpper(string(outcome)), formatShortDuration(dur))
		p.lastPrinted = time.Now()
	}
}

// Stop 停止 keepalive；可重复调用。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: images=%d/%d downloaded=%d elapsed=%s\n",
						p.images, p.total, p.downloads, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func formatPackages(refs []config.PackageRef) string {
	if len(refs) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, r.Owner+"/"+r.Repo)
	}
	return strings.Join(parts, ", ")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func strField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
