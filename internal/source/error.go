package source

import (
	"fmt"

	"github.com/John-Robertt/sitedata/internal/domain"
)

const (
	StageFetch = "fetch"
	StageParse = "parse"
)

// Error 是来源阶段的可追溯错误。
// 上层据此把失败归类为 transport_failed / schema_invalid，并写入 report。
type Error struct {
	Source string // 来源名（小写）
	Stage  string // "fetch" 或 "parse"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail 包装来源错误：数据异常归为 parse，其余（网络、状态码）归为 fetch。
func Fail(source string, err error) error {
	if err == nil {
		return nil
	}
	stage := StageFetch
	if domain.IsSchema(err) {
		stage = StageParse
	}
	return &Error{Source: source, Stage: stage, Err: err}
}
