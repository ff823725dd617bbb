package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout 是单次请求的总超时（上游卡死时不至于无限挂起）。
	DefaultTimeout = 30 * time.Second

	// UserAgent 是所有出站请求的固定 UA。
	UserAgent = "sitedata/1.0 (+https://github.com/John-Robertt/sitedata)"

	// maxErrorBody 是非 2xx 时为提取错误详情而读取的最大字节数。
	maxErrorBody = 64 << 10
)

// Transport 统一设置 UA/Accept 头。
//
// 约束：不做重试。每页/每张图只请求一次，失败由上层中止整次运行。
type Transport struct {
	Base http.RoundTripper

	// Accept 为空时不设置（图片下载不限制类型）。
	Accept string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", UserAgent)
	}
	if t.Accept != "" && r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", t.Accept)
	}
	return base.RoundTrip(r)
}

// NewAPIClient 构造带 bearer 凭证的 API 客户端（GraphQL / REST）。
//
// 凭证在构造时注入；空 token 直接报错，而不是等到第一次请求才 401。
func NewAPIClient(token string, timeout time.Duration) (*http.Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("访问令牌为空")
	}
	base := &http.Client{
		Transport: &Transport{Base: newBaseTransport(), Accept: "application/json"},
		Timeout:   normTimeout(timeout),
	}

	// oauth2.NewClient 会沿用 ctx 中 HTTPClient 的 Transport，并在外层加 Authorization 头。
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	c.Timeout = normTimeout(timeout)
	return c, nil
}

// NewPublicClient 构造不带凭证的 JSON API 客户端。
func NewPublicClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Base: newBaseTransport(), Accept: "application/json"},
		Timeout:   normTimeout(timeout),
	}
}

// NewImageClient 构造用于图片下载的客户端。
// 图片通常托管在 CDN 上：绝不携带 API 凭证。
func NewImageClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Base: newBaseTransport()},
		Timeout:   normTimeout(timeout),
	}
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
}

func normTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// GetJSON 发起 GET 并返回 2xx 响应体；非 2xx 返回 *StatusError。
func GetJSON(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败：%w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败 %s：%w", url, err)
	}
	return b, nil
}

// CheckStatus 在非 2xx 时读取（有限的）响应体并返回 *StatusError；2xx 返回 nil 且不读 body。
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.Redacted()
	}
	return &StatusError{
		URL:        u,
		StatusCode: resp.StatusCode,
		Detail:     detailFromBody(resp.Header.Get("Content-Type"), body),
	}
}
