package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"
)

// DecodeImagePayload 解码图片载荷，兼容 data URL 前缀与裸 base64
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return data, nil
}

// EncodeImagePayload 编码为 base64 字符串
func EncodeImagePayload(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// CompositeAlpha 把 mask 作为 alpha 通道合成到原图上生成去背图
// alpha = mask 像素值（mask 为 0/255 二值图），不做羽化
func CompositeAlpha(original, mask []byte) ([]byte, error) {
	srcImg, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, fmt.Errorf("failed to decode original image: %w", err)
	}
	maskImg, _, err := image.Decode(bytes.NewReader(mask))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask image: %w", err)
	}

	bounds := srcImg.Bounds()
	if maskImg.Bounds().Dx() != bounds.Dx() || maskImg.Bounds().Dy() != bounds.Dy() {
		return nil, fmt.Errorf("mask size %v does not match image size %v",
			maskImg.Bounds().Size(), bounds.Size())
	}

	rgba := image.NewNRGBA(bounds)
	draw.Draw(rgba, bounds, srcImg, bounds.Min, draw.Src)

	maskMin := maskImg.Bounds().Min
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			g := color.GrayModel.Convert(maskImg.At(maskMin.X+x, maskMin.Y+y)).(color.Gray)
			rgba.Pix[rgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)+3] = g.Y
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("failed to encode rgba image: %w", err)
	}
	return buf.Bytes(), nil
}
