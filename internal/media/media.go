// Package media 把记录里的远端头像地址解析为站点内的本地图片（下载、缩放、缓存）。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/cache"
	"github.com/John-Robertt/sitedata/internal/infra/fsx"
	"github.com/John-Robertt/sitedata/internal/infra/httpx"
	"github.com/John-Robertt/sitedata/internal/infra/imgx"
)

// DefaultWidth 是头像缩放后的宽度（像素）。
const DefaultWidth = 100

// MaxImageBytes 是单张头像响应体的上限。
const MaxImageBytes = 16 << 20

// Outcome 是单条记录在 media 阶段的结果。
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded" // 写入了新文件
	OutcomeCurrent    Outcome = "current"    // 本地文件仍然有效，未写盘
	OutcomeSkipped    Outcome = "skipped"    // 记录没有远端头像
	OutcomePending    Outcome = "pending"    // dry-run：需要下载但未执行
)

// Observer 接收逐条图片事件。实现必须并发安全：事件来自 worker goroutine。
type Observer interface {
	OnImageDone(idx, total int, id string, outcome Outcome, dur time.Duration)
}

// Manager 负责单次运行的头像解析。
//
// 约束：
// - 本地文件名固定为 <id>.<ext>，ext 由响应 Content-Type 决定
// - 返回的路径相对 PublicRoot，使用 '/' 分隔（直接写进快照）
// - 任一图片失败（非 2xx、未知类型、缩放或写盘失败）：整体失败
// - 先在内存里缩放，再一次性原子写入；失败时旧文件保持不变
// - DryRun=true 时不发请求、不写盘
type Manager struct {
	Client     *http.Client // 不带凭证（httpx.NewImageClient）
	Dir        string       // 图片目录，例如 <root>/source/images/sponsors
	PublicRoot string       // 站点源目录，例如 <root>/source
	Width      int
	Store      cache.Store
	DryRun     bool
	Observer   Observer
	Now        func() time.Time
}

// Result 是 Resolve 的输出。Entry 非 nil 表示索引需要更新。
type Result struct {
	Image   *string
	Outcome Outcome
	Entry   *cache.Entry
}

// Resolve 解析一条记录的头像。idx 只读；索引的写回由 ResolveAll 串行完成。
//
// 缓存判定：
// - 索引无条目、文件已不存在、或条目没有 Last-Modified：总是重新下载
// - 有 Last-Modified：带 If-Modified-Since 请求，304 视为有效
// - 200 但 Last-Modified 不晚于上次下载时间且文件名不变：视为有效，丢弃响应体
func (m *Manager) Resolve(ctx context.Context, s domain.Sponsor, idx cache.Index) (Result, error) {
	url := strings.TrimSpace(s.ImageURL)
	if url == "" {
		return Result{Image: s.Image, Outcome: OutcomeSkipped}, nil
	}
	id := s.Key()
	if id == "" {
		return Result{}, fmt.Errorf("media: 记录 %q 有头像地址但没有 id", s.Name)
	}

	prev, cached := idx[id]
	if cached && !m.fileExists(prev.File) {
		cached = false
	}

	if m.DryRun {
		if cached {
			p, err := m.publicPath(prev.File)
			if err != nil {
				return Result{}, err
			}
			return Result{Image: &p, Outcome: OutcomeCurrent}, nil
		}
		return Result{Outcome: OutcomePending}, nil
	}

	if m.Client == nil {
		return Result{}, errors.New("media: image client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("media: 构造请求失败 %s：%w", url, err)
	}
	if cached && prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if !cached {
			return Result{}, fmt.Errorf("media: %s 返回 304，但本地没有缓存文件", url)
		}
		return m.current(prev.File)
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return Result{}, err
	}

	ext, err := ExtensionFor(resp.Header.Get("Content-Type"))
	if err != nil {
		return Result{}, fmt.Errorf("%s：%w", url, err)
	}
	name := id + "." + ext
	lastMod := strings.TrimSpace(resp.Header.Get("Last-Modified"))

	if cached && lastMod != "" && prev.File == name {
		if t, err := http.ParseTime(lastMod); err == nil && !t.After(prev.FetchedAt) {
			return m.current(prev.File)
		}
	}

	data, err := readBody(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("media: 读取 %s 失败：%w", url, err)
	}
	data, err = m.resize(name, data)
	if err != nil {
		return Result{}, err
	}
	if err := fsx.WriteFileAtomic(m.Dir, name, data); err != nil {
		return Result{}, fmt.Errorf("media: 写入 %s 失败：%w", name, err)
	}

	p, err := m.publicPath(name)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Image:   &p,
		Outcome: OutcomeDownloaded,
		Entry:   &cache.Entry{File: name, FetchedAt: m.now().UTC(), LastModified: lastMod},
	}, nil
}

// ResolveAll 并发解析全部记录，返回带本地路径的新切片（不修改入参）与统计。
//
// 约束：
// - 最多 workers 个并发下载（<=0 时取 runtime.NumCPU()）
// - 结果按下标写回，输出顺序与输入一致
// - 首个错误取消其余任务，返回错误且不保存索引
// - 索引只在有变化且非 dry-run 时保存
func (m *Manager) ResolveAll(ctx context.Context, records []domain.Sponsor, workers int) ([]domain.Sponsor, domain.ImageSummary, error) {
	var sum domain.ImageSummary
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	idx, err := m.Store.Load()
	if err != nil {
		return nil, sum, err
	}

	log := zerolog.Ctx(ctx)
	results := make([]Result, len(records))

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		g.Go(func() error {
			started := time.Now()
			r, err := m.Resolve(gctx, records[i], idx)
			if err != nil {
				return fmt.Errorf("记录 %q：%w", records[i].Name, err)
			}
			results[i] = r

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			log.Debug().Str("id", records[i].Key()).Str("outcome", string(r.Outcome)).Dur("dur", time.Since(started)).Msg("image resolved")
			if m.Observer != nil {
				m.Observer.OnImageDone(n, len(records), records[i].Key(), r.Outcome, time.Since(started))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sum, err
	}

	out := make([]domain.Sponsor, len(records))
	dirty := false
	for i, r := range results {
		out[i] = records[i]
		out[i].Image = r.Image
		switch r.Outcome {
		case OutcomeDownloaded:
			sum.Downloaded++
		case OutcomeCurrent:
			sum.Current++
		case OutcomeSkipped:
			sum.Skipped++
		case OutcomePending:
			sum.Pending++
		}
		if r.Entry != nil {
			idx[records[i].Key()] = *r.Entry
			dirty = true
		}
	}

	if dirty && !m.DryRun {
		if err := m.Store.Save(idx); err != nil {
			return nil, sum, fmt.Errorf("media: 保存缓存索引失败：%w", err)
		}
	}
	return out, sum, nil
}

func (m *Manager) current(name string) (Result, error) {
	p, err := m.publicPath(name)
	if err != nil {
		return Result{}, err
	}
	return Result{Image: &p, Outcome: OutcomeCurrent}, nil
}

// resize 在内存里缩放，成功后才由调用方落盘；已有文件在失败时保持不变。
// 解码失败包装为 *fs.PathError（Op=resize），归入文件系统错误。
func (m *Manager) resize(name string, data []byte) ([]byte, error) {
	width := m.Width
	if width <= 0 {
		width = DefaultWidth
	}
	out, _, err := imgx.ResizeToWidth(data, width)
	if err != nil {
		return nil, &fs.PathError{Op: "resize", Path: filepath.Join(m.Dir, name), Err: err}
	}
	return out, nil
}

// readBody 读取完整响应体；超过 MaxImageBytes 视为失败。
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("响应体超过 %d 字节", MaxImageBytes)
	}
	return data, nil
}

func (m *Manager) publicPath(name string) (string, error) {
	rel, err := filepath.Rel(m.PublicRoot, filepath.Join(m.Dir, name))
	if err != nil {
		return "", fmt.Errorf("media: 图片目录不在站点源目录内：%w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media: 图片目录 %q 不在 %q 之内", m.Dir, m.PublicRoot)
	}
	return filepath.ToSlash(rel), nil
}

func (m *Manager) fileExists(name string) bool {
	if name == "" {
		return false
	}
	fi, err := os.Stat(filepath.Join(m.Dir, name))
	return err == nil && fi.Mode().IsRegular()
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
