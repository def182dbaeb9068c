package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/gpu/core"
	"github.com/Faultbox/prism/internal/gpu/soft"
)

func tgaHeader(kind byte, w, h int, bits byte, descriptor byte) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = kind
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bits
	hdr[17] = descriptor
	return hdr
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 128}
)

func TestDecodeTGAUncompressedBottomUp(t *testing.T) {
	// Rows are stored bottom row first; pixels are BGRA.
	data := tgaHeader(TGATypeUncompressed, 2, 2, 32, 0)
	data = append(data,
		0, 0, 255, 255, 0, 255, 0, 255, // bottom: red, green
		255, 0, 0, 255, 255, 255, 255, 128, // top: blue, white
	)
	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, blue, img.RGBAAt(0, 0))
	assert.Equal(t, white, img.RGBAAt(1, 0))
	assert.Equal(t, red, img.RGBAAt(0, 1))
	assert.Equal(t, green, img.RGBAAt(1, 1))
}

func TestDecodeTGARLETopDown(t *testing.T) {
	data := tgaHeader(TGATypeRLE, 3, 1, 24, 0x20)
	data = append(data,
		0x81, 0, 0, 255, // repeat red twice
		0x00, 255, 0, 0, // one raw blue
	)
	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, red, img.RGBAAt(0, 0))
	assert.Equal(t, red, img.RGBAAt(1, 0))
	assert.Equal(t, blue, img.RGBAAt(2, 0))
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := map[string][]byte{
		"short header": {0, 0, 2},
		"color mapped": func() []byte { h := tgaHeader(TGATypeUncompressed, 1, 1, 24, 0); h[1] = 1; return h }(),
		"type":         tgaHeader(3, 1, 1, 24, 0),
		"depth":        tgaHeader(TGATypeUncompressed, 1, 1, 16, 0),
		"pixels":       append(tgaHeader(TGATypeUncompressed, 2, 2, 24, 0), 1, 2, 3),
		"rle pixel":    append(tgaHeader(TGATypeRLE, 2, 1, 24, 0), 0x81, 1),
	}
	for name, data := range tests {
		_, err := DecodeTGA(data)
		assert.Error(t, err, name)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func checker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, red)
	img.SetRGBA(1, 0, green)
	img.SetRGBA(0, 1, blue)
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})
	return img
}

func TestDecodeByExtension(t *testing.T) {
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, checker()))

	for name, data := range map[string][]byte{
		"a.png": encodePNG(t, checker()),
		"b.BMP": bmpBuf.Bytes(),
	} {
		img, err := Decode(name, data)
		require.NoError(t, err, name)
		assert.Equal(t, checker().Pix, img.Pix, name)
	}

	_, err := Decode("c.gif", nil)
	assert.ErrorContains(t, err, "unsupported")
	_, err = Decode("d.png", []byte("not a png"))
	assert.Error(t, err)
}

func TestToRGBAOffsetsBounds(t *testing.T) {
	sub := checker().SubImage(image.Rect(1, 1, 2, 2))
	out := ToRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 1, 1), out.Rect)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 0))

	full := checker()
	assert.Same(t, full, ToRGBA(full))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checker.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, checker()), 0o644))

	dev, err := soft.New(4, 4)
	require.NoError(t, err)
	staging, err := ring.NewStagingHeap(dev, 8)
	require.NoError(t, err)

	tex, err := Load(dev, staging, path)
	require.NoError(t, err)
	assert.Equal(t, "checker.png", tex.Name)
	assert.Equal(t, 1, staging.Used())
	assert.False(t, tex.SRV.IsNull())

	res := tex.Resource.(*core.Texture)
	assert.Equal(t, 2, res.Width())
	px := res.Pixel(1, 0)
	assert.InDelta(t, 0, px[0], 1e-6)
	assert.InDelta(t, 1, px[1], 1e-6)

	_, err = Load(dev, staging, filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
