// Package ghsponsors 从 GitHub Sponsors（GraphQL）拉取当前维护者名下的赞助记录。
package ghsponsors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/John-Robertt/sitedata/internal/classify"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/graphql"
	"github.com/John-Robertt/sitedata/internal/paging"
	"github.com/John-Robertt/sitedata/internal/source"
)

// Name 是来源名，也是 --source 的取值。
const Name = "github"

// DefaultPageSize 是单页请求条数（GraphQL connection 的上限是 100）。
const DefaultPageSize = 100

const query = `query($login: String!, $first: Int!, $after: String) {
  user(login: $login) {
    sponsorshipsAsMaintainer(includePrivate: true, first: $first, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        createdAt
        privacyLevel
        isActive
        tier {
          monthlyPriceInCents
        }
        sponsorEntity {
          ... on User {
            databaseId
            name
            login
            avatarUrl
            websiteUrl
            url
          }
          ... on Organization {
            databaseId
            name
            login
            avatarUrl
            websiteUrl
            url
          }
        }
      }
    }
  }
}`

const connPath = "user.sponsorshipsAsMaintainer"

type Options struct {
	Login    string       // 被赞助的 GitHub 账号
	Endpoint string       // 为空时使用 graphql.DefaultGitHubEndpoint
	PageSize int          // <=0 时使用 DefaultPageSize
	HTTP     *http.Client // 必须携带凭证（httpx.NewAPIClient）
	Now      func() time.Time
}

// Source 实现 source.SponsorSource。
type Source struct {
	login    string
	pageSize int
	client   graphql.Client
	now      func() time.Time
}

func New(opts Options) (*Source, error) {
	login := strings.TrimSpace(opts.Login)
	if login == "" {
		return nil, errors.New("ghsponsors: login 不能为空")
	}
	if opts.HTTP == nil {
		return nil, errors.New("ghsponsors: http client 不能为空")
	}
	size := opts.PageSize
	if size <= 0 || size > DefaultPageSize {
		size = DefaultPageSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Source{
		login:    login,
		pageSize: size,
		client:   graphql.Client{Endpoint: opts.Endpoint, HTTP: opts.HTTP},
		now:      now,
	}, nil
}

func (s *Source) Name() string { return Name }

// FetchActiveContributors 逐页拉取并只保留“有档位且仍然活跃”的赞助。
//
// 约束：
// - 金额 = 月付金额 × 从 createdAt 到今天（UTC）经过的自然月数
// - 非 PUBLIC 的记录在这里就匿名化，身份信息不会离开本包
// - 月付金额不在档位表中：整体失败（schema）
func (s *Source) FetchActiveContributors(ctx context.Context) ([]domain.Sponsor, error) {
	today := domain.DateOf(s.now().UTC())
	out, err := paging.Collect(ctx, Name, func(ctx context.Context, cursor *string) (paging.Page[domain.Sponsor], error) {
		data, err := s.client.Do(ctx, query, map[string]any{
			"login": s.login,
			"first": s.pageSize,
			"after": cursor,
		})
		if err != nil {
			return paging.Page[domain.Sponsor]{}, err
		}
		return ParsePage(data, today)
	})
	if err != nil {
		return nil, source.Fail(Name, err)
	}
	return out, nil
}

// ParsePage 把一页 GraphQL data 解析为已过滤的记录。纯函数：today 由调用方传入。
func ParsePage(data gjson.Result, today domain.Date) (paging.Page[domain.Sponsor], error) {
	conn, err := graphql.Require(data, Name, connPath)
	if err != nil {
		return paging.Page[domain.Sponsor]{}, err
	}
	hasNext, cursor, err := graphql.PageInfo(conn, Name, connPath)
	if err != nil {
		return paging.Page[domain.Sponsor]{}, err
	}
	nodes, err := graphql.Require(conn, Name, "nodes")
	if err != nil {
		return paging.Page[domain.Sponsor]{}, err
	}

	var items []domain.Sponsor
	for i, n := range nodes.Array() {
		s, keep, err := parseNode(n, today)
		if err != nil {
			return paging.Page[domain.Sponsor]{}, fmt.Errorf("nodes[%d]：%w", i, err)
		}
		if keep {
			items = append(items, s)
		}
	}
	return paging.Page[domain.Sponsor]{Items: items, Cursor: cursor, HasNext: hasNext}, nil
}

func parseNode(n gjson.Result, today domain.Date) (domain.Sponsor, bool, error) {
	tier := n.Get("tier")
	if !tier.Exists() || tier.Type == gjson.Null {
		return domain.Sponsor{}, false, nil
	}
	active := n.Get("isActive")
	if active.Type != gjson.True && active.Type != gjson.False {
		return domain.Sponsor{}, false, domain.MissingField(Name, "isActive")
	}
	if !active.Bool() {
		return domain.Sponsor{}, false, nil
	}

	price, err := graphql.Require(tier, Name, "monthlyPriceInCents")
	if err != nil {
		return domain.Sponsor{}, false, err
	}
	cents := price.Int()
	level, err := classify.TierForMonthlyPrice(cents)
	if err != nil {
		return domain.Sponsor{}, false, &domain.SchemaError{Source: Name, Field: "tier.monthlyPriceInCents", Err: err}
	}

	created, err := graphql.Require(n, Name, "createdAt")
	if err != nil {
		return domain.Sponsor{}, false, err
	}
	createdAt, err := classify.ParseDate(created.String(), time.RFC3339)
	if err != nil {
		return domain.Sponsor{}, false, &domain.SchemaError{Source: Name, Field: "createdAt", Err: err}
	}

	s := domain.Sponsor{
		Kind:           domain.KindPublic,
		TotalDonated:   classify.TotalDonated(cents, classify.MonthsElapsed(createdAt, today)),
		Tier:           level,
		CurrencySymbol: domain.CurrencyUSD,
		CreatedAt:      createdAt,
	}

	if n.Get("privacyLevel").String() != "PUBLIC" {
		return s.Anonymize(), true, nil
	}

	entity, err := graphql.Require(n, Name, "sponsorEntity")
	if err != nil {
		return domain.Sponsor{}, false, err
	}
	dbID := entity.Get("databaseId")
	if dbID.Type != gjson.Number {
		return domain.Sponsor{}, false, domain.MissingField(Name, "sponsorEntity.databaseId")
	}
	id := "gh-" + strconv.FormatInt(dbID.Int(), 10)
	s.ID = &id

	s.Name = strings.TrimSpace(entity.Get("name").String())
	if s.Name == "" {
		s.Name = strings.TrimSpace(entity.Get("login").String())
	}
	if s.Name == "" {
		return domain.Sponsor{}, false, domain.MissingField(Name, "sponsorEntity.name")
	}
	s.ImageURL = strings.TrimSpace(entity.Get("avatarUrl").String())
	s.Website = domain.StringPtr(entity.Get("websiteUrl").String())
	if s.Website == nil {
		s.Website = domain.StringPtr(entity.Get("url").String())
	}
	return s, true, nil
}
