// Package ghtags 通过 GitHub GraphQL 读取仓库的标签与元数据，产出版本快照。
package ghtags

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/John-Robertt/sitedata/internal/classify"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/graphql"
	"github.com/John-Robertt/sitedata/internal/paging"
	"github.com/John-Robertt/sitedata/internal/source"
)

const Name = "github_tags"

const DefaultPageSize = 100

const query = `query($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(followRenames: true, owner: $owner, name: $name) {
    stargazerCount
    description
    url
    licenseInfo {
      name
    }
    refs(refPrefix: "refs/tags/", first: $first, after: $after, orderBy: {field: ALPHABETICAL, direction: DESC}) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        name
        target {
          __typename
          ... on Commit {
            committedDate
          }
          ... on Tag {
            target {
              ... on Commit {
                committedDate
              }
            }
          }
        }
      }
    }
  }
}`

type Options struct {
	Owner    string
	Repo     string
	Endpoint string
	PageSize int
	HTTP     *http.Client
}

// Source 实现 source.VersionSource。
type Source struct {
	owner    string
	repo     string
	pageSize int
	client   graphql.Client
}

func New(opts Options) (*Source, error) {
	owner := strings.TrimSpace(opts.Owner)
	repo := strings.TrimSpace(opts.Repo)
	if owner == "" || repo == "" {
		return nil, errors.New("ghtags: owner/repo 不能为空")
	}
	if opts.HTTP == nil {
		return nil, errors.New("ghtags: http client 不能为空")
	}
	size := opts.PageSize
	if size <= 0 || size > DefaultPageSize {
		size = DefaultPageSize
	}
	return &Source{
		owner:    owner,
		repo:     repo,
		pageSize: size,
		client:   graphql.Client{Endpoint: opts.Endpoint, HTTP: opts.HTTP},
	}, nil
}

func (s *Source) Name() string { return Name }

// FetchMatchingVersions 读取仓库元数据与全部标签，只保留严格 MAJOR.MINOR.PATCH 的版本。
//
// 约束：
// - 元数据取自第一页（GraphQL 每页都会返回，后续页忽略）
// - versions 保持上游顺序（字母序降序），不重新排序
// - last_release 是 versions 中语义化版本最大的一个；没有版本时为 null
func (s *Source) FetchMatchingVersions(ctx context.Context) (domain.Project, error) {
	var (
		meta  domain.Project
		first = true
	)
	versions, err := paging.Collect(ctx, Name, func(ctx context.Context, cursor *string) (paging.Page[domain.Version], error) {
		data, err := s.client.Do(ctx, query, map[string]any{
			"owner": s.owner,
			"name":  s.repo,
			"first": s.pageSize,
			"after": cursor,
		})
		if err != nil {
			return paging.Page[domain.Version]{}, err
		}
		repo, err := graphql.Require(data, Name, "repository")
		if err != nil {
			return paging.Page[domain.Version]{}, err
		}
		if first {
			meta = ParseMeta(repo)
			first = false
		}
		return ParseRefs(repo)
	})
	if err != nil {
		return domain.Project{}, source.Fail(Name, err)
	}

	meta.Owner = s.owner
	meta.Name = s.repo
	meta.Versions = versions
	if meta.Versions == nil {
		meta.Versions = []domain.Version{}
	}
	meta.LastRelease = classify.LatestVersion(meta.Versions)
	return meta, nil
}

// ParseMeta 读取仓库元数据（stars/描述/许可证/地址）。
func ParseMeta(repo gjson.Result) domain.Project {
	return domain.Project{
		URL:         repo.Get("url").String(),
		Description: domain.StringPtr(repo.Get("description").String()),
		Stars:       int(repo.Get("stargazerCount").Int()),
		License:     domain.StringPtr(repo.Get("licenseInfo.name").String()),
	}
}

// ParseRefs 解析一页 refs，过滤掉非严格版本号的标签。
func ParseRefs(repo gjson.Result) (paging.Page[domain.Version], error) {
	refs, err := graphql.Require(repo, Name, "refs")
	if err != nil {
		return paging.Page[domain.Version]{}, err
	}
	hasNext, cursor, err := graphql.PageInfo(refs, Name, "refs")
	if err != nil {
		return paging.Page[domain.Version]{}, err
	}
	nodes, err := graphql.Require(refs, Name, "nodes")
	if err != nil {
		return paging.Page[domain.Version]{}, err
	}

	var items []domain.Version
	for _, n := range nodes.Array() {
		tag := n.Get("name").String()
		name, ok := classify.NormalizeVersion(tag)
		if !ok {
			continue
		}
		committed := commitDate(n.Get("target"))
		if committed == "" {
			return paging.Page[domain.Version]{}, domain.MissingField(Name, fmt.Sprintf("refs[%s].target.committedDate", tag))
		}
		date, err := classify.FormatVersionDate(committed)
		if err != nil {
			return paging.Page[domain.Version]{}, &domain.SchemaError{Source: Name, Field: "committedDate", Err: err}
		}
		items = append(items, domain.Version{Name: name, Date: date})
	}
	return paging.Page[domain.Version]{Items: items, Cursor: cursor, HasNext: hasNext}, nil
}

// commitDate 兼容轻量标签（target 是 Commit）与附注标签（target 是 Tag，再指向 Commit）。
func commitDate(target gjson.Result) string {
	if d := target.Get("committedDate").String(); d != "" {
		return d
	}
	return target.Get("target.committedDate").String()
}
