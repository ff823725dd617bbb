package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	ErrCodeTransportFailed         = "transport_failed"
	ErrCodeSchemaInvalid           = "schema_invalid"
	ErrCodeIOFailed                = "io_failed"
	ErrCodeConfigNotFound          = "config_not_found"
	ErrCodeConfigInvalid           = "config_invalid"
	ErrCodeConfigMissingCredential = "config_missing_credential"
	ErrCodeInternal                = "internal"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Command string `json:"command"`
	Root    string `json:"root"`
	DryRun  bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Sources  []SourceResult `json:"sources"`
	Images   ImageSummary   `json:"images"`
	Snapshot string         `json:"snapshot"`
	Pruned   []string       `json:"pruned"`
}

// SourceResult 记录单个来源产出的记录数（赞助者或版本）。
type SourceResult struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// ImageSummary 统计 media 阶段的结果；Pending 只在 dry-run 出现（本应下载但未执行）。
type ImageSummary struct {
	Downloaded int `json:"downloaded"`
	Current    int `json:"current"`
	Skipped    int `json:"skipped"`
	Pending    int `json:"pending"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) pruned 排序、nil 切片归一为空切片（输出结构稳定）
// 3) status 由 error_code 推导
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Sources == nil {
		r.Sources = []SourceResult{}
	}
	if r.Pruned == nil {
		r.Pruned = []string{}
	}
	sort.Strings(r.Pruned)

	if r.ErrorCode != "" {
		r.Status = StatusFailed
	} else {
		r.Status = StatusOK
	}
}

// Failed 报告本次运行是否失败。
func (r RunReport) Failed() bool {
	return r.ErrorCode != ""
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
