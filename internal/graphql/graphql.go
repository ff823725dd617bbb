// Package graphql 是最小的 GraphQL over HTTP 客户端：POST query/variables，返回 data 节点。
//
// 字段读取交给 gjson 路径，调用方自己决定哪些字段是必需的。
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/John-Robertt/sitedata/internal/domain"
	"github.com/John-Robertt/sitedata/internal/infra/httpx"
)

// DefaultGitHubEndpoint 是 GitHub GraphQL API 地址。
const DefaultGitHubEndpoint = "https://api.github.com/graphql"

// Client 对单个 GraphQL endpoint 发请求。凭证由 HTTP（通常是 httpx.NewAPIClient）负责。
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// Error 表示响应里带有非空 errors 数组（HTTP 200 也可能出现）。
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Do 执行一次查询并返回 data 节点。
//
// 失败分类：
// - 非 2xx：*httpx.StatusError
// - 响应不是 JSON / 缺 data：*domain.SchemaError
// - errors 非空：*Error（包在 SchemaError 里，便于上层统一归类）
func (c Client) Do(ctx context.Context, query string, vars map[string]any) (gjson.Result, error) {
	if c.HTTP == nil {
		return gjson.Result{}, errors.New("graphql: http client 不能为空")
	}
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = DefaultGitHubEndpoint
	}

	payload, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("graphql: 编码请求失败：%w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("graphql: 构造请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return gjson.Result{}, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("graphql: 读取响应失败：%w", err)
	}
	return decode(body)
}

func decode(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &domain.SchemaError{Source: "graphql", Err: errors.New("响应不是合法 JSON")}
	}
	root := gjson.ParseBytes(body)

	if errs := root.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		ge := &Error{}
		for _, e := range errs.Array() {
			msg := e.Get("message").String()
			if msg == "" {
				msg = e.Raw
			}
			ge.Messages = append(ge.Messages, msg)
		}
		return gjson.Result{}, &domain.SchemaError{Source: "graphql", Err: ge}
	}

	data := root.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return gjson.Result{}, domain.MissingField("graphql", "data")
	}
	return data, nil
}

// Require 读取必需字段；不存在或为 null 时返回 SchemaError。
func Require(r gjson.Result, source, path string) (gjson.Result, error) {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return gjson.Result{}, domain.MissingField(source, path)
	}
	return v, nil
}

// PageInfo 读取标准的 Relay pageInfo{hasNextPage,endCursor}。
func PageInfo(conn gjson.Result, source, prefix string) (hasNext bool, cursor string, err error) {
	hn, err := Require(conn, source, "pageInfo.hasNextPage")
	if err != nil {
		return false, "", withPrefix(err, prefix)
	}
	if hn.Type != gjson.True && hn.Type != gjson.False {
		return false, "", &domain.SchemaError{Source: source, Field: prefix + ".pageInfo.hasNextPage", Err: fmt.Errorf("不是布尔值：%s", hn.Raw)}
	}
	return hn.Bool(), conn.Get("pageInfo.endCursor").String(), nil
}

func withPrefix(err error, prefix string) error {
	var se *domain.SchemaError
	if prefix != "" && errors.As(err, &se) {
		return &domain.SchemaError{Source: se.Source, Field: prefix + "." + se.Field, Err: se.Err}
	}
	return err
}
