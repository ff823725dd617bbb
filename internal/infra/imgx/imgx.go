package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ResizeToWidth 把位图等比缩放到指定宽度（放大或缩小），并保持原编码格式。
//
// 约束：
// - 只处理 PNG/JPEG/GIF；其它格式（SVG/WebP 等）原样返回，changed=false
// - 宽度已经等于 width 时不重新编码，changed=false
// - GIF 只保留第一帧（头像场景足够，且避免逐帧重采样）
// - 已识别格式但解码失败：返回错误
func ResizeToWidth(data []byte, width int) (out []byte, changed bool, err error) {
	if len(data) == 0 {
		return nil, false, errors.New("图片为空")
	}
	if width <= 0 {
		return nil, false, fmt.Errorf("目标宽度无效：%d", width)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return data, false, nil
		}
		return nil, false, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, false, errors.New("图片尺寸无效")
	}
	if cfg.Width == width {
		return data, false, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}

	height := max(1, (cfg.Height*width+cfg.Width/2)/cfg.Width)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		return data, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("编码 %s 失败：%w", format, err)
	}
	return buf.Bytes(), true, nil
}
