package paging

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// pager 按预设的每页条数返回数据，并记录调用轨迹。
type pager struct {
	sizes   []int
	calls   int
	cursors []*string
	// afterLast 记录 HasNext=false 之后是否还有调用
	afterLast bool
	done      bool
}

func (p *pager) fetch(_ context.Context, cursor *string) (Page[int], error) {
	if p.done {
		p.afterLast = true
	}
	p.cursors = append(p.cursors, cursor)
	i := p.calls
	p.calls++

	items := make([]int, p.sizes[i])
	for j := range items {
		items[j] = i*1000 + j
	}
	hasNext := i < len(p.sizes)-1
	if !hasNext {
		p.done = true
	}
	return Page[int]{Items: items, Cursor: "c" + strconv.Itoa(i+1), HasNext: hasNext}, nil
}

func TestCollect_FollowsCursorUntilLastPage(t *testing.T) {
	p := &pager{sizes: []int{2, 3, 1}}

	got, err := Collect(context.Background(), "test", p.fetch)
	require.NoError(t, err)

	assert.Len(t, got, 6)
	assert.Equal(t, 3, p.calls)
	assert.False(t, p.afterLast)
	require.Len(t, p.cursors, 3)
	assert.Nil(t, p.cursors[0], "首次请求游标必须为 nil")
	assert.Equal(t, "c1", *p.cursors[1])
	assert.Equal(t, "c2", *p.cursors[2])
	assert.Equal(t, []int{0, 1, 1000, 1001, 1002, 2000}, got)
}

func TestCollect_ErrorReturnsNoPartialResult(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	got, err := Collect(context.Background(), "test", func(_ context.Context, _ *string) (Page[int], error) {
		calls++
		if calls == 2 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: []int{1}, Cursor: "x", HasNext: true}, nil
	})

	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.Equal(t, 2, calls)
}

func TestCollect_StalledCursorIsSchemaError(t *testing.T) {
	tests := []struct {
		name   string
		cursor func(call int) string
	}{
		{name: "empty cursor", cursor: func(int) string { return "" }},
		{name: "repeated cursor", cursor: func(int) string { return "same" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Collect(context.Background(), "test", func(_ context.Context, _ *string) (Page[int], error) {
				calls++
				return Page[int]{Items: []int{calls}, Cursor: tt.cursor(calls), HasNext: true}, nil
			})
			require.Error(t, err)
			assert.True(t, domain.IsSchema(err), "err=%v", err)
			assert.LessOrEqual(t, calls, 2)
		})
	}
}

func TestCollect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, "test", func(_ context.Context, _ *string) (Page[int], error) {
		require.FailNow(t, "已取消的 ctx 不应发请求")
		return Page[int]{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// 累积条数 = 各页条数之和；请求次数 = 页数；最后一页之后不再请求。
	properties.Property("count equals sum of pages", prop.ForAll(
		func(sizes []int) bool {
			if len(sizes) == 0 {
				sizes = []int{0}
			}
			p := &pager{sizes: sizes}
			got, err := Collect(context.Background(), "prop", p.fetch)
			if err != nil {
				return false
			}
			sum := 0
			for _, s := range sizes {
				sum += s
			}
			return len(got) == sum && p.calls == len(sizes) && !p.afterLast
		},
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.TestingRun(t)
}
