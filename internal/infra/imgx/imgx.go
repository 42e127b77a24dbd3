package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // 缩略图与截图多为 JPEG
	"image/png"

	"golang.org/x/image/draw"
)

// MaxFrameEdge 是截帧长边的上限，超过时等比缩小。
const MaxFrameEdge = 1920

// FramePNG 把截帧图片统一为 PNG。
//
// 约束：
// - 输入允许是 JPEG/PNG
// - 输出固定为 PNG（CapturedFrame.ImageData 的存储格式）
// - 长边超过 MaxFrameEdge 时等比缩小
func FramePNG(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("图片为空")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败：%w", err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	// 已是 PNG 且无需缩放：原样返回。
	if format == "png" && b.Dx() <= MaxFrameEdge && b.Dy() <= MaxFrameEdge {
		return raw, nil
	}

	var dst draw.Image
	if b.Dx() > MaxFrameEdge || b.Dy() > MaxFrameEdge {
		dst = shrink(img, MaxFrameEdge)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		dst = rgba
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// shrink 把图片等比缩到长边 maxEdge（双线性近似）。
func shrink(src image.Image, maxEdge int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var nw, nh int
	if w >= h {
		nw, nh = maxEdge, max(1, h*maxEdge/w)
	} else {
		nw, nh = max(1, w*maxEdge/h), maxEdge
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
