package pathtracer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/prism/internal/logger"
)

// Sky gradient, bottom to top.
var (
	SkyBottom = mgl64.Vec3{1, 1, 0.5}
	SkyTop    = mgl64.Vec3{1, 0.7, 0.5}
)

// Sky returns the miss colour for a ray direction.
func Sky(dir mgl64.Vec3) mgl64.Vec3 {
	a := 0.5 * (dir.Normalize().Y() + 1)
	return SkyBottom.Mul(1 - a).Add(SkyTop.Mul(a))
}

// rayTMin keeps scattered rays from hitting the surface they leave.
const rayTMin = 0.001

// Camera is a thin-lens camera. Set the exported fields, then call Render
// or Initialize followed by GetRay.
type Camera struct {
	AspectRatio     float64
	ImageWidth      int
	SamplesPerPixel int
	MaxDepth        int
	VerticalFOV     float64 // degrees

	LookFrom mgl64.Vec3
	LookAt   mgl64.Vec3
	Up       mgl64.Vec3

	DefocusAngle  float64 // degrees; 0 is a pinhole
	FocusDistance float64

	// Seed makes a render reproducible. Row y uses its own generator seeded
	// from Seed and y.
	Seed int64
	// Workers caps the rows rendered concurrently; 0 means GOMAXPROCS.
	Workers int

	imageHeight      int
	pixelSampleScale float64
	center           mgl64.Vec3
	pixel00          mgl64.Vec3
	pixelDeltaU      mgl64.Vec3
	pixelDeltaV      mgl64.Vec3
	u, v, w          mgl64.Vec3
	defocusDiskU     mgl64.Vec3
	defocusDiskV     mgl64.Vec3
}

// NewCamera returns a camera with the reference defaults: square 100 pixel
// image, 10 samples, depth 10, 90 degree fov, looking down -z.
func NewCamera() *Camera {
	return &Camera{
		AspectRatio:     1,
		ImageWidth:      100,
		SamplesPerPixel: 10,
		MaxDepth:        10,
		VerticalFOV:     90,
		LookFrom:        mgl64.Vec3{0, 0, 0},
		LookAt:          mgl64.Vec3{0, 0, -1},
		Up:              mgl64.Vec3{0, 1, 0},
		FocusDistance:   10,
	}
}

// ImageHeight returns the height derived from width and aspect ratio. Valid
// after Initialize.
func (c *Camera) ImageHeight() int { return c.imageHeight }

// Initialize derives the viewport from the exported fields.
func (c *Camera) Initialize() {
	c.imageHeight = max(int(float64(c.ImageWidth)/c.AspectRatio), 1)
	c.pixelSampleScale = 1 / float64(max(c.SamplesPerPixel, 1))
	c.center = c.LookFrom

	theta := mgl64.DegToRad(c.VerticalFOV)
	h := math.Tan(theta / 2)
	viewportHeight := 2 * h * c.FocusDistance
	viewportWidth := viewportHeight * float64(c.ImageWidth) / float64(c.imageHeight)

	c.w = c.LookFrom.Sub(c.LookAt).Normalize()
	c.u = c.Up.Cross(c.w).Normalize()
	c.v = c.w.Cross(c.u)

	viewportU := c.u.Mul(viewportWidth)
	viewportV := c.v.Mul(-viewportHeight)
	c.pixelDeltaU = viewportU.Mul(1 / float64(c.ImageWidth))
	c.pixelDeltaV = viewportV.Mul(1 / float64(c.imageHeight))

	upperLeft := c.center.Sub(c.w.Mul(c.FocusDistance)).Sub(viewportU.Mul(0.5)).Sub(viewportV.Mul(0.5))
	c.pixel00 = upperLeft.Add(c.pixelDeltaU.Add(c.pixelDeltaV).Mul(0.5))

	defocusRadius := c.FocusDistance * math.Tan(mgl64.DegToRad(c.DefocusAngle/2))
	c.defocusDiskU = c.u.Mul(defocusRadius)
	c.defocusDiskV = c.v.Mul(defocusRadius)
}

// GetRay returns a ray through a random point of pixel (i, j), starting on
// the defocus disk when the defocus angle is positive.
func (c *Camera) GetRay(i, j int, rng *rand.Rand) Ray {
	ox, oy := rng.Float64()-0.5, rng.Float64()-0.5
	sample := c.pixel00.
		Add(c.pixelDeltaU.Mul(float64(i) + ox)).
		Add(c.pixelDeltaV.Mul(float64(j) + oy))

	origin := c.center
	if c.DefocusAngle > 0 {
		p := randomInUnitDisk(rng)
		origin = c.center.Add(c.defocusDiskU.Mul(p[0])).Add(c.defocusDiskV.Mul(p[1]))
	}
	return Ray{Origin: origin, Direction: sample.Sub(origin)}
}

// RayColor follows r for at most depth bounces. The result is the product
// of the attenuations along the path times the sky colour, or black when the
// path is absorbed or runs out of bounces.
func RayColor(r Ray, depth int, world Hittable, rng *rand.Rand) mgl64.Vec3 {
	throughput := mgl64.Vec3{1, 1, 1}
	for ; depth > 0; depth-- {
		rec, ok := world.Hit(r, Interval{rayTMin, math.Inf(1)})
		if !ok {
			return mul(throughput, Sky(r.Direction))
		}
		attenuation, scattered, ok := rec.Material.Scatter(r, rec, rng)
		if !ok {
			return mgl64.Vec3{}
		}
		throughput = mul(throughput, attenuation)
		r = scattered
	}
	return mgl64.Vec3{}
}

// Render traces every pixel of world. Rows run concurrently and the result
// depends only on the camera fields, not on scheduling.
func (c *Camera) Render(ctx context.Context, world Hittable) (*Image, error) {
	c.Initialize()
	img := NewImage(c.ImageWidth, c.imageHeight)
	log := logger.Named("pathtracer")
	log.Info("render started",
		zap.Int("width", c.ImageWidth),
		zap.Int("height", c.imageHeight),
		zap.Int("samples", c.SamplesPerPixel),
		zap.Int("maxDepth", c.MaxDepth),
	)
	start := time.Now()

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	step := max(c.imageHeight/10, 1)
	for j := 0; j < c.imageHeight; j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.renderRow(img, world, j)
			if n := done.Add(1); n%int64(step) == 0 {
				log.Debug("scanlines done", zap.Int64("done", n), zap.Int("total", c.imageHeight))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	log.Info("render finished", zap.Duration("elapsed", time.Since(start)))
	return img, nil
}

func (c *Camera) renderRow(img *Image, world Hittable, j int) {
	rng := rand.New(rand.NewSource(c.Seed*1_000_003 + int64(j)))
	for i := 0; i < c.ImageWidth; i++ {
		var sum mgl64.Vec3
		for range c.SamplesPerPixel {
			sum = sum.Add(RayColor(c.GetRay(i, j, rng), c.MaxDepth, world, rng))
		}
		img.Set(i, j, sum.Mul(c.pixelSampleScale))
	}
}
