package pathtracer

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Image holds linear colours, row 0 at the top.
type Image struct {
	Width, Height int
	Pix           []mgl64.Vec3
}

// NewImage allocates a black image.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]mgl64.Vec3, width*height)}
}

// At returns the linear colour of pixel (x, y).
func (m *Image) At(x, y int) mgl64.Vec3 { return m.Pix[y*m.Width+x] }

// Set stores the linear colour of pixel (x, y).
func (m *Image) Set(x, y int, c mgl64.Vec3) { m.Pix[y*m.Width+x] = c }

var intensity = Interval{0, 0.999}

func linearToGamma(x float64) float64 {
	if x > 0 {
		return math.Sqrt(x)
	}
	return 0
}

// ColorByte maps a linear component to [0, 255]: gamma 2 by square root,
// clamp to [0, 0.999], scale by 256 and truncate.
func ColorByte(x float64) uint8 {
	return uint8(256 * intensity.Clamp(linearToGamma(x)))
}

// RGBA converts the image to 8-bit sRGB-ish pixels.
func (m *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := m.At(x, y)
			out.SetRGBA(x, y, color.RGBA{ColorByte(c[0]), ColorByte(c[1]), ColorByte(c[2]), 255})
		}
	}
	return out
}

// WritePPM writes the image as plain-text PPM (P3), one pixel per line.
func (m *Image) WritePPM(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P3\n%d %d\n255\n", m.Width, m.Height)
	for _, c := range m.Pix {
		fmt.Fprintf(bw, "%d %d %d\n", ColorByte(c[0]), ColorByte(c[1]), ColorByte(c[2]))
	}
	return bw.Flush()
}

// Formats lists the extensions Encode accepts.
var Formats = []string{".ppm", ".png", ".bmp", ".tif", ".tiff"}

// Supported reports whether Encode accepts ext.
func Supported(ext string) bool {
	return slices.Contains(Formats, strings.ToLower(ext))
}

// Encode writes the image in the format named by ext.
func (m *Image) Encode(w io.Writer, ext string) error {
	switch strings.ToLower(ext) {
	case ".ppm":
		return m.WritePPM(w)
	case ".png":
		return png.Encode(w, m.RGBA())
	case ".bmp":
		return bmp.Encode(w, m.RGBA())
	case ".tif", ".tiff":
		return tiff.Encode(w, m.RGBA(), &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image format %q", ext)
}

// Save writes the image to path, choosing the format by extension.
func (m *Image) Save(path string) error {
	if !Supported(filepath.Ext(path)) {
		return fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := m.Encode(f, filepath.Ext(path)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
