// Package paging 实现“按游标翻页并累积”的通用循环。
package paging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// Page 是一次请求的不可变结果：本页条目 + 是否还有下一页 + 下一页游标。
type Page[T any] struct {
	Items   []T
	Cursor  string
	HasNext bool
}

// FetchFunc 请求一页数据。首次调用 cursor 为 nil。
type FetchFunc[T any] func(ctx context.Context, cursor *string) (Page[T], error)

// Collect 反复调用 fetch 直到某页报告 HasNext=false，按顺序累积所有条目。
//
// 约束：
// - 收到 HasNext=false 后绝不再发请求
// - 任一页失败：整体失败，不返回部分结果
// - HasNext=true 但游标为空或未前进：视为上游数据异常（否则循环无法终止）
func Collect[T any](ctx context.Context, source string, fetch FetchFunc[T]) ([]T, error) {
	log := zerolog.Ctx(ctx)

	var (
		all    []T
		cursor *string
		seen   = map[string]struct{}{}
	)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("第 %d 页：%w", n, err)
		}
		all = append(all, page.Items...)
		log.Debug().Str("source", source).Int("page", n).Int("items", len(page.Items)).Bool("has_next", page.HasNext).Msg("page fetched")

		if !page.HasNext {
			return all, nil
		}
		if page.Cursor == "" {
			return nil, &domain.SchemaError{Source: source, Field: "cursor", Err: fmt.Errorf("第 %d 页声明还有下一页，但游标为空", n)}
		}
		if _, dup := seen[page.Cursor]; dup {
			return nil, &domain.SchemaError{Source: source, Field: "cursor", Err: fmt.Errorf("第 %d 页返回了重复游标 %q", n, page.Cursor)}
		}
		seen[page.Cursor] = struct{}{}
		next := page.Cursor
		cursor = &next
	}
}
