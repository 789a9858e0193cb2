package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImagePayload(t *testing.T) {
	data, err := DecodeImagePayload("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	// 裸 base64 同样可用
	data, err = DecodeImagePayload("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestDecodeImagePayloadInvalid(t *testing.T) {
	_, err := DecodeImagePayload("not base64 at all!!!")
	assert.Error(t, err)
}

func TestCompositeAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	// 左列前景、右列背景的二值 mask
	mask := image.NewGray(image.Rect(0, 0, 2, 2))
	mask.SetGray(0, 0, color.Gray{Y: 255})
	mask.SetGray(0, 1, color.Gray{Y: 255})
	mask.SetGray(1, 0, color.Gray{Y: 0})
	mask.SetGray(1, 1, color.Gray{Y: 0})

	out, err := CompositeAlpha(encodePNG(t, src), encodePNG(t, mask))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	rgba, ok := decoded.(*image.NRGBA)
	require.True(t, ok)

	// alpha = mask × 255，不做羽化
	assert.Equal(t, uint8(255), rgba.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), rgba.NRGBAAt(0, 1).A)
	assert.Equal(t, uint8(0), rgba.NRGBAAt(1, 0).A)
	assert.Equal(t, uint8(0), rgba.NRGBAAt(1, 1).A)

	// 颜色通道保持不变
	assert.Equal(t, uint8(10), rgba.NRGBAAt(0, 0).R)
}

func TestCompositeAlphaSizeMismatch(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	mask := image.NewGray(image.Rect(0, 0, 3, 3))

	_, err := CompositeAlpha(encodePNG(t, src), encodePNG(t, mask))
	assert.Error(t, err)
}
