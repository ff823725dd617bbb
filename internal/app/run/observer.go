package run

import (
	"time"

	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/media"
)

// Observer 把运行进度从核心流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 实现必须并发安全：图片事件来自 media 的 worker goroutine。
type Observer interface {
	media.Observer

	// OnStart 在命令开始时调用一次。
	OnStart(command string, cfg config.Config, dryRun bool)
	// OnPhaseDone 在阶段结束时调用（fetch 每个来源一次）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, config.Config, bool)                        {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)          {}
func (nopObserver) OnImageDone(int, int, string, media.Outcome, time.Duration) {}
