// Package texture decodes image files and uploads them as shader-readable
// textures.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// Texture is an uploaded RGBA8 texture and its staging SRV.
type Texture struct {
	Name     string
	Resource gpu.Texture
	SRV      gpu.CPUDescriptorHandle
}

// Decode picks a decoder from the file extension.
func Decode(name string, data []byte) (*image.RGBA, error) {
	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(data)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".tga":
		return DecodeTGA(data)
	case ".png":
		img, err = png.Decode(r)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	case ".tif", ".tiff":
		img, err = tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ToRGBA(img), nil
}

// Upload creates an RGBA8 texture from img and writes its SRV into the
// staging heap.
func Upload(dev gpu.Device, staging *ring.StagingHeap, name string, img *image.RGBA) (*Texture, error) {
	img = ToRGBA(img)
	res, err := dev.CreateTexture(gpu.TextureDesc{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Format: gpu.FormatRGBA8,
	}, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", name, err)
	}
	srv, err := staging.Allocate(1)
	if err != nil {
		return nil, fmt.Errorf("texture %s srv: %w", name, err)
	}
	if err := dev.CreateTextureSRV(res, srv); err != nil {
		return nil, fmt.Errorf("texture %s srv: %w", name, err)
	}
	return &Texture{Name: name, Resource: res, SRV: srv}, nil
}

// Load reads, decodes and uploads an image file.
func Load(dev gpu.Device, staging *ring.StagingHeap, path string) (*Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load texture: %w", err)
	}
	img, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	t, err := Upload(dev, staging, filepath.Base(path), img)
	if err != nil {
		return nil, err
	}
	logger.Debug("texture loaded", zap.String("path", path),
		zap.Int("width", img.Rect.Dx()), zap.Int("height", img.Rect.Dy()))
	return t, nil
}
