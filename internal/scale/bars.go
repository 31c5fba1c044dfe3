package scale

import (
	"image"
	"log/slog"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"

	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/geometry"
)

// Bar is a candidate graphical scale bar: a near-horizontal segment found in
// the title-block band of the page. Candidates are unranked; resolving the
// labeled value next to a bar requires label OCR, which hooks in above this
// layer.
type Bar struct {
	X1           int     `json:"x1"`
	Y1           int     `json:"y1"`
	X2           int     `json:"x2"`
	Y2           int     `json:"y2"`
	LengthPixels float64 `json:"length_pixels"`
}

// BarDetector locates candidate scale bars in a raster page image.
type BarDetector struct {
	cfg    common.DetectionConfig
	logger *slog.Logger
}

func NewBarDetector(cfg common.DetectionConfig, logger *slog.Logger) *BarDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &BarDetector{cfg: cfg, logger: logger}
}

// binaryThreshold separates edge responses from background after detection.
const binaryThreshold = 96

// maxRunGap is the number of consecutive non-edge pixels tolerated inside a
// horizontal run, to survive antialiasing breaks.
const maxRunGap = 2

// Detect runs grayscale -> blur -> edge detection -> threshold, then scans
// the bottom band of the page for horizontal edge runs whose length falls in
// the configured scale-bar range.
func (d *BarDetector) Detect(img image.Image) []Bar {
	if img == nil {
		return nil
	}

	gray := imaging.Grayscale(img)
	blurred := blur.Gaussian(gray, 1.4)
	edges := effect.EdgeDetection(blurred, 1.0)
	bin := segment.Threshold(edges, binaryThreshold)

	bounds := bin.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	bandTop := int(float64(height) * (1 - d.cfg.BarBandFraction))

	var bars []Bar
	for y := bandTop; y < height; y++ {
		runStart := -1
		gap := 0
		for x := 0; x <= width; x++ {
			on := x < width && bin.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y > 0
			switch {
			case on && runStart < 0:
				runStart = x
				gap = 0
			case on:
				gap = 0
			case runStart >= 0:
				gap++
				if gap > maxRunGap || x == width {
					runEnd := x - gap
					bars = d.appendRun(bars, runStart, runEnd, y)
					runStart = -1
					gap = 0
				}
			}
		}
	}

	d.logger.Debug("scale bar detection complete",
		"width", width, "height", height, "band_top", bandTop, "candidates", len(bars))
	return bars
}

// appendRun records a horizontal run as a bar candidate if its length is in
// range and it is not a duplicate of a bar found on a nearby row (thick bars
// produce edge responses on several adjacent rows).
func (d *BarDetector) appendRun(bars []Bar, x1, x2, y int) []Bar {
	length := float64(x2 - x1)
	if length < float64(d.cfg.MinBarLengthPx) || length > float64(d.cfg.MaxBarLengthPx) {
		return bars
	}
	for _, b := range bars {
		if abs(b.Y1-y) <= 6 && overlapRatio(b.X1, b.X2, x1, x2) > 0.5 {
			return bars
		}
	}
	return append(bars, Bar{
		X1:           x1,
		Y1:           y,
		X2:           x2,
		Y2:           y,
		LengthPixels: geometry.Distance(geometry.Point{X: float64(x1), Y: float64(y)}, geometry.Point{X: float64(x2), Y: float64(y)}),
	})
}

func overlapRatio(a1, a2, b1, b2 int) float64 {
	lo := a1
	if b1 > lo {
		lo = b1
	}
	hi := a2
	if b2 < hi {
		hi = b2
	}
	if hi <= lo {
		return 0
	}
	span := a2 - a1
	if b2-b1 < span {
		span = b2 - b1
	}
	if span <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(span)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
