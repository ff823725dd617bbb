package media

import (
	"fmt"
	"mime"
	"strings"

	"github.com/John-Robertt/sitedata/internal/domain"
)

// extensions 是 Content-Type 到本地扩展名的固定映射。
// 不读系统 mime 表。
var extensions = map[string]string{
	"image/png":                "png",
	"image/jpeg":               "jpeg",
	"image/jpg":                "jpeg",
	"image/pjpeg":              "jpeg",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/avif":               "avif",
	"image/svg+xml":            "svg",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/bmp":                "bmp",
	"image/tiff":               "tiff",
}

// ExtensionFor 返回 Content-Type 对应的扩展名（不含点）。
// 缺失或未登记的类型返回 SchemaError：文件名无法确定时不能落盘。
func ExtensionFor(contentType string) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", domain.MissingField("media", "Content-Type")
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &domain.SchemaError{Source: "media", Field: "Content-Type", Err: err}
	}
	ext, ok := extensions[strings.ToLower(mt)]
	if !ok {
		return "", &domain.SchemaError{Source: "media", Field: "Content-Type", Err: fmt.Errorf("未知的图片类型 %q", mt)}
	}
	return ext, nil
}
