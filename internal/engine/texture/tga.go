package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types handled by DecodeTGA.
const (
	TGATypeUncompressed = 2
	TGATypeRLE          = 10
)

const tgaHeaderSize = 18

// ErrTruncated reports pixel data shorter than the header promises.
var ErrTruncated = errors.New("texture: truncated image data")

// tgaReader walks BGR(A) pixels in file order and stores them in an RGBA
// image, honouring the descriptor's vertical origin.
type tgaReader struct {
	img         *image.RGBA
	data        []byte
	pos         int
	bpp         int
	topToBottom bool
	next        int
}

func (r *tgaReader) pixel() (color.RGBA, bool) {
	if r.pos+r.bpp > len(r.data) {
		return color.RGBA{}, false
	}
	p := r.data[r.pos : r.pos+r.bpp]
	r.pos += r.bpp
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if r.bpp == 4 {
		c.A = p[3]
	}
	return c, true
}

func (r *tgaReader) put(c color.RGBA) {
	w, h := r.img.Rect.Dx(), r.img.Rect.Dy()
	x, y := r.next%w, r.next/w
	if !r.topToBottom {
		y = h - 1 - y
	}
	r.img.SetRGBA(x, y, c)
	r.next++
}

func (r *tgaReader) done() bool {
	return r.next >= r.img.Rect.Dx()*r.img.Rect.Dy()
}

// DecodeTGA decodes uncompressed or RLE true-colour TGA data with 24 or 32
// bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("tga header: %w", ErrTruncated)
	}
	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bits := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if bits != 24 && bits != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bits)
	}
	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("tga id field: %w", ErrTruncated)
	}

	r := &tgaReader{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		data:        data[offset:],
		bpp:         bits / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	if imageType == TGATypeUncompressed {
		if len(r.data) < width*height*r.bpp {
			return nil, fmt.Errorf("tga pixels: %w", ErrTruncated)
		}
		for !r.done() {
			c, _ := r.pixel()
			r.put(c)
		}
		return r.img, nil
	}

	// RLE packets: high bit set repeats one pixel, otherwise count raw pixels.
	for !r.done() && r.pos < len(r.data) {
		packet := r.data[r.pos]
		r.pos++
		count := int(packet&0x7F) + 1
		if packet&0x80 != 0 {
			c, ok := r.pixel()
			if !ok {
				return nil, fmt.Errorf("tga rle: %w", ErrTruncated)
			}
			for i := 0; i < count && !r.done(); i++ {
				r.put(c)
			}
			continue
		}
		for i := 0; i < count && !r.done(); i++ {
			c, ok := r.pixel()
			if !ok {
				return nil, fmt.Errorf("tga raw: %w", ErrTruncated)
			}
			r.put(c)
		}
	}
	return r.img, nil
}

// ToRGBA converts img to tightly packed 8-bit RGBA, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return out
}
