package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"

	"github.com/John-Robertt/sitedata/internal/config"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/fsx"
	"github.com/John-Robertt/sitedata/internal/infra/httpx"
	"github.com/John-Robertt/sitedata/internal/source"
)

// 阶段名（StageError.Stage 与 Observer.OnPhaseDone 共用）。
const (
	StageConfig   = "config"
	StageFetch    = "fetch"
	StageMedia    = "media"
	StageSnapshot = "snapshot"
	StagePrune    = "prune"
)

// StageError 标记失败发生在哪个阶段。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorCode 把错误映射为 report 的 error_code。
//
// 判定顺序：配置 > 数据结构 > 文件系统 > 传输。
// 来源错误若未命中以上类型，按其阶段兜底（parse 归 schema，fetch 归 transport）。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if c := config.Code(err); c != "" {
		return c
	}
	if domain.IsSchema(err) {
		return domain.ErrCodeSchemaInvalid
	}
	if fsx.IsCrossDevice(err) || fsx.IsPathTypeConflict(err) || isFSError(err) {
		return domain.ErrCodeIOFailed
	}
	if _, ok := httpx.IsStatus(err); ok || isNetError(err) {
		return domain.ErrCodeTransportFailed
	}

	var se *source.Error
	if errors.As(err, &se) {
		if se.Stage == source.StageParse {
			return domain.ErrCodeSchemaInvalid
		}
		return domain.ErrCodeTransportFailed
	}
	return domain.ErrCodeInternal
}

func isFSError(err error) bool {
	var pe *fs.PathError
	var le *os.LinkError
	return errors.As(err, &pe) || errors.As(err, &le) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

func isNetError(err error) bool {
	var ue *url.Error
	var ne net.Error
	return errors.As(err, &ue) || errors.As(err, &ne) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
