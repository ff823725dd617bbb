package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const maxDetail = 200

// StatusError 表示上游返回了非 2xx 的 HTTP 状态码。
// Detail 是从响应体里提取的可读原因（JSON 的 message，或 HTML 网关错误页的 <title>）。
type StatusError struct {
	URL        string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := fmt.Sprintf("HTTP %d", e.StatusCode)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if d := strings.TrimSpace(e.Detail); d != "" {
		msg += "：" + d
	}
	return msg
}

// IsStatus 判断 err 链上是否有 StatusError，并返回它。
func IsStatus(err error) (*StatusError, bool) {
	var e *StatusError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func detailFromBody(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	mt, _, _ := mime.ParseMediaType(contentType)

	switch {
	case strings.HasSuffix(mt, "json") || (mt == "" && gjson.ValidBytes(body)):
		if !gjson.ValidBytes(body) {
			return ""
		}
		// GitHub/Open Collective 的错误体分别是 {"message":...} / {"error":{"message":...}}。
		for _, path := range []string{"message", "error.message", "error", "errors.0.message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String {
				return truncate(r.String())
			}
		}
		return ""
	case mt == "text/html" || bytes.HasPrefix(bytes.ToLower(body), []byte("<!doctype html")) || bytes.HasPrefix(bytes.ToLower(body), []byte("<html")):
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return ""
		}
		title := strings.TrimSpace(doc.Find("title").First().Text())
		if title == "" {
			title = strings.TrimSpace(doc.Find("h1").First().Text())
		}
		return truncate(strings.Join(strings.Fields(title), " "))
	case strings.HasPrefix(mt, "text/"):
		return truncate(strings.Join(strings.Fields(string(body)), " "))
	default:
		return ""
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDetail {
		return s
	}
	return string(r[:maxDetail]) + "…"
}
