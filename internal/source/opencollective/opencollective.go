// Package opencollective 从 Open Collective 的 members.json 拉取赞助记录。
package opencollective

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/John-Robertt/sitedata/internal/classify"
	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/httpx"
	"github.com/John-Robertt/sitedata/internal/paging"
	"github.com/John-Robertt/sitedata/internal/source"
)

const Name = "opencollective"

const (
	DefaultBaseURL  = "https://opencollective.com"
	DefaultPageSize = 100
)

// createdAt 的已知格式：members.json 目前返回 "2006-01-02 15:04"，其余为兼容。
var dateLayouts = []string{"2006-01-02 15:04", time.RFC3339, "2006-01-02"}

type Options struct {
	Slug     string // collective 的 slug，例如 "inko-lang"
	BaseURL  string
	PageSize int
	HTTP     *http.Client
}

// Source 实现 source.SponsorSource。
//
// 分页为 limit/offset：返回满页即认为还有下一页，游标是下一页的 offset。
type Source struct {
	slug     string
	base     string
	pageSize int
	http     *http.Client
}

func New(opts Options) (*Source, error) {
	slug := strings.Trim(strings.TrimSpace(opts.Slug), "/")
	if slug == "" {
		return nil, errors.New("opencollective: slug 不能为空")
	}
	if opts.HTTP == nil {
		return nil, errors.New("opencollective: http client 不能为空")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Source{slug: slug, base: base, pageSize: size, http: opts.HTTP}, nil
}

func (s *Source) Name() string { return Name }

func (s *Source) FetchActiveContributors(ctx context.Context) ([]domain.Sponsor, error) {
	seen := map[string]struct{}{}
	out, err := paging.Collect(ctx, Name, func(ctx context.Context, cursor *string) (paging.Page[domain.Sponsor], error) {
		offset := 0
		if cursor != nil {
			n, err := strconv.Atoi(*cursor)
			if err != nil {
				return paging.Page[domain.Sponsor]{}, fmt.Errorf("游标无效 %q：%w", *cursor, err)
			}
			offset = n
		}
		body, err := httpx.GetJSON(ctx, s.http, s.pageURL(offset))
		if err != nil {
			return paging.Page[domain.Sponsor]{}, err
		}
		page, ids, err := ParsePage(body, offset, s.pageSize)
		if err != nil {
			return paging.Page[domain.Sponsor]{}, err
		}
		// 服务端忽略 offset 时会一直返回同一页；用 MemberId 去重发现它。
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return paging.Page[domain.Sponsor]{}, &domain.SchemaError{Source: Name, Field: "MemberId", Err: fmt.Errorf("offset=%d 出现重复成员 %s", offset, id)}
			}
			seen[id] = struct{}{}
		}
		return page, nil
	})
	if err != nil {
		return nil, source.Fail(Name, err)
	}
	return out, nil
}

func (s *Source) pageURL(offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	return s.base + "/" + url.PathEscape(s.slug) + "/members.json?" + q.Encode()
}

// ParsePage 解析一页 members.json（顶层是数组）。
// 返回过滤后的记录，以及本页所有成员的 id（含被过滤掉的），供调用方检测重复页。
func ParsePage(body []byte, offset, limit int) (paging.Page[domain.Sponsor], []string, error) {
	if !gjson.ValidBytes(body) {
		return paging.Page[domain.Sponsor]{}, nil, &domain.SchemaError{Source: Name, Err: errors.New("响应不是合法 JSON")}
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return paging.Page[domain.Sponsor]{}, nil, &domain.SchemaError{Source: Name, Err: errors.New("响应顶层不是数组")}
	}

	rows := root.Array()
	items := make([]domain.Sponsor, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for i, m := range rows {
		id := m.Get("MemberId")
		if id.Type != gjson.Number {
			return paging.Page[domain.Sponsor]{}, nil, fmt.Errorf("第 %d 条：%w", offset+i, domain.MissingField(Name, "MemberId"))
		}
		ids = append(ids, id.Raw)

		s, keep, err := parseMember(m)
		if err != nil {
			return paging.Page[domain.Sponsor]{}, nil, fmt.Errorf("第 %d 条：%w", offset+i, err)
		}
		if keep {
			items = append(items, s)
		}
	}

	next := offset + len(rows)
	return paging.Page[domain.Sponsor]{
		Items:   items,
		Cursor:  strconv.Itoa(next),
		HasNext: limit > 0 && len(rows) >= limit,
	}, ids, nil
}

func parseMember(m gjson.Result) (domain.Sponsor, bool, error) {
	tier, ok := classify.NormalizeTier(m.Get("tier").String())
	if !ok || !m.Get("isActive").Bool() {
		return domain.Sponsor{}, false, nil
	}

	name := strings.TrimSpace(m.Get("name").String())
	if name == "" {
		return domain.Sponsor{}, false, domain.MissingField(Name, "name")
	}

	amount := m.Get("totalAmountDonated")
	if amount.Type != gjson.Number {
		return domain.Sponsor{}, false, domain.MissingField(Name, "totalAmountDonated")
	}
	total, err := classify.MajorToMinor(amount.Float())
	if err != nil {
		return domain.Sponsor{}, false, &domain.SchemaError{Source: Name, Field: "totalAmountDonated", Err: err}
	}

	created, err := classify.ParseDate(m.Get("createdAt").String(), dateLayouts...)
	if err != nil {
		return domain.Sponsor{}, false, &domain.SchemaError{Source: Name, Field: "createdAt", Err: err}
	}

	id := "oc-" + m.Get("MemberId").Raw
	website := domain.StringPtr(m.Get("website").String())
	if website == nil {
		website = domain.StringPtr(m.Get("profile").String())
	}
	return domain.Sponsor{
		ID:             &id,
		Kind:           domain.KindPublic,
		Name:           name,
		Website:        website,
		TotalDonated:   total,
		Tier:           tier,
		CurrencySymbol: domain.CurrencyEUR,
		CreatedAt:      created,
		ImageURL:       strings.TrimSpace(m.Get("image").String()),
	}, true, nil
}
