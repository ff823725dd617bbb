package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/domain"
)

type stubSource struct {
	name string
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) FetchActiveContributors(context.Context) ([]domain.Sponsor, error) {
	return nil, nil
}

func names(srcs []SponsorSource) []string {
	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, s.Name())
	}
	return out
}

func TestNewRegistry_RejectsDuplicateAndEmpty(t *testing.T) {
	_, err := NewRegistry(stubSource{name: "github"}, stubSource{name: "GitHub "})
	assert.Error(t, err, "重复 source")
	_, err = NewRegistry(stubSource{name: " "})
	assert.Error(t, err, "空 name")
	_, err = NewRegistry(nil)
	assert.Error(t, err, "nil source")
}

func TestRegistry_SelectKeepsRequestedOrder(t *testing.T) {
	reg, err := NewRegistry(stubSource{name: "github"}, stubSource{name: "opencollective"})
	require.NoError(t, err)

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"github", "opencollective"}, names(all), "默认按注册顺序返回全部")

	some, err := reg.Select([]string{"OpenCollective", "github"})
	require.NoError(t, err)
	assert.Equal(t, []string{"opencollective", "github"}, names(some), "按请求顺序返回")

	_, err = reg.Select([]string{"patreon"})
	assert.Error(t, err, "未注册 source")
	_, err = reg.Select([]string{"github", "github"})
	assert.Error(t, err, "重复 source")
}

func TestFail_StageFromErrorKind(t *testing.T) {
	var se *Error
	err := Fail("github", domain.MissingField("github", "nodes"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageParse, se.Stage, "schema 错误归为 parse")

	err = Fail("github", errors.New("connection refused"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageFetch, se.Stage, "其他错误归为 fetch")

	assert.NoError(t, Fail("github", nil))
}
