// Package segment locates and crops the title+abstract region of a
// rendered document page.
//
// The heuristic assumes a single-column layout on a white background: the
// page is partitioned into fixed-height horizontal bands, each band is
// reduced to its mean luminance, and contiguous runs of non-white bands
// ("blocks") stand in for paragraphs. The first block that is long enough
// and dark enough is taken to be the abstract's opening paragraph; it is
// greedily extended over following long blocks and the page is cropped at
// the end of the run. Pages that don't fit the layout produce a NotFound
// outcome, which callers treat as "try another paper".
package segment

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

// Config holds segmentation tuning parameters. Lengths are measured in
// bands, luminance in the 0-255 range where 255 is pure white.
type Config struct {
	// Zoom is the render resolution multiplier the page was rasterized at.
	Zoom float64

	// TopFraction is the fraction of darkest bands used for a block's
	// darkness score. Scoring only the darkest bands discounts
	// whitespace-heavy blocks so dense text stands out against rules
	// and decoration.
	TopFraction float64

	// MinAbstractLength is the minimum qualifying block length.
	MinAbstractLength int

	// MaxAbstractLength is the maximum qualifying block length.
	MaxAbstractLength int

	// MinAbstractGray is the darkness score threshold; a qualifying
	// block must score at or below it.
	MinAbstractGray float64

	// PadSides is the horizontal crop margin in pixels. The left edge
	// gets an extra 20px to skip line numbers and margin artifacts.
	PadSides int

	// PadTop is the top crop margin in pixels.
	PadTop int

	// PadBottom is the height of the white margin appended below the crop.
	PadBottom int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Zoom == 0 {
		c.Zoom = 2.0
	}
	if c.TopFraction == 0 {
		c.TopFraction = 0.4
	}
	if c.MinAbstractLength == 0 {
		c.MinAbstractLength = 15
	}
	if c.MaxAbstractLength == 0 {
		c.MaxAbstractLength = 100
	}
	if c.MinAbstractGray == 0 {
		c.MinAbstractGray = 240
	}
	if c.PadSides == 0 {
		c.PadSides = 80
	}
	if c.PadTop == 0 {
		c.PadTop = 100
	}
	if c.PadBottom == 0 {
		c.PadBottom = 100
	}
}

const (
	// bandRowsPerZoom is the band height in rows per unit of zoom.
	// 5 rows at zoom 1 absorbs anti-aliasing noise while staying fine
	// enough to resolve paragraph gaps.
	bandRowsPerZoom = 5

	// cropMarginRows is the slack added below the last absorbed block.
	cropMarginRows = 10

	// extraLeftPad is the additional left margin on top of PadSides.
	extraLeftPad = 20
)

// Segmenter crops the title+abstract region out of rendered pages.
// It is stateless and safe for concurrent use.
type Segmenter struct {
	cfg Config
}

// New creates a Segmenter with the given configuration.
func New(cfg Config) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{cfg: cfg}
}

// block is a maximal run of contiguous non-white bands.
type block struct {
	startRow int     // first pixel row of the run
	length   int     // run length in bands
	darkness float64 // mean luminance of the darkest TopFraction of bands
}

// Segment returns the page cropped to its title+abstract region, padded
// with a white bottom margin. It returns domain.ErrNoAbstract when the
// page has no full band or no block passes the length and darkness
// criteria.
func (s *Segmenter) Segment(page image.Image) (image.Image, error) {
	bandHeight := bandRowsPerZoom * int(s.cfg.Zoom)
	if bandHeight <= 0 {
		bandHeight = bandRowsPerZoom
	}

	profile := luminanceProfile(page, bandHeight)
	if len(profile) == 0 {
		return nil, domain.ErrNoAbstract
	}

	blocks := s.collectBlocks(profile, bandHeight)

	first := -1
	for i, b := range blocks {
		if b.length >= s.cfg.MinAbstractLength && b.length <= s.cfg.MaxAbstractLength &&
			b.darkness <= s.cfg.MinAbstractGray {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, domain.ErrNoAbstract
	}

	// Absorb continuation paragraphs; a short block (e.g. a section
	// heading) ends the abstract.
	last := first
	for last+1 < len(blocks) && blocks[last+1].length >= s.cfg.MinAbstractLength {
		last++
	}

	bounds := page.Bounds()
	cropRow := blocks[last].startRow + blocks[last].length*bandHeight + cropMarginRows
	if cropRow > bounds.Dy() {
		cropRow = bounds.Dy()
	}

	return s.crop(page, cropRow), nil
}

// luminanceProfile reduces the page to one mean luminance per full band.
// Trailing rows that do not fill a band are ignored.
func luminanceProfile(page image.Image, bandHeight int) []float64 {
	bounds := page.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	numBands := height / bandHeight
	if width == 0 || numBands == 0 {
		return nil
	}

	profile := make([]float64, numBands)
	pixelsPerBand := bandHeight * width

	for band := 0; band < numBands; band++ {
		var sum int64
		y0 := bounds.Min.Y + band*bandHeight
		for y := y0; y < y0+bandHeight; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				sum += int64(luminance(page.At(x, y)))
			}
		}
		profile[band] = float64(sum) / float64(pixelsPerBand)
	}
	return profile
}

// luminance converts a color to 8-bit luma using integer Rec. 601
// weights. A pure-white pixel maps exactly to 255, which the block scan
// relies on to detect whitespace bands.
func luminance(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	return uint8((299*int64(r>>8) + 587*int64(g>>8) + 114*int64(b>>8)) / 1000)
}

// collectBlocks scans the luminance profile top to bottom and merges
// consecutive inked bands (mean < 255) into blocks. A band reading pure
// white ends the current block.
func (s *Segmenter) collectBlocks(profile []float64, bandHeight int) []block {
	var blocks []block
	var run []float64
	startRow := 0

	flush := func() {
		if len(run) == 0 {
			return
		}
		blocks = append(blocks, block{
			startRow: startRow,
			length:   len(run),
			darkness: s.darknessScore(run),
		})
		run = nil
	}

	for i, mean := range profile {
		if mean < 255 {
			if len(run) == 0 {
				startRow = i * bandHeight
			}
			run = append(run, mean)
			continue
		}
		flush()
	}
	flush()

	return blocks
}

// darknessScore returns the mean of the darkest TopFraction of the
// block's band luminances.
func (s *Segmenter) darknessScore(bands []float64) float64 {
	sorted := make([]float64, len(bands))
	copy(sorted, bands)
	sort.Float64s(sorted)

	k := int(float64(len(sorted)) * s.cfg.TopFraction)
	if k < 1 {
		k = 1
	}

	var sum float64
	for _, v := range sorted[:k] {
		sum += v
	}
	return sum / float64(k)
}

// crop extracts [PadSides+extraLeftPad, PadTop] x [width-PadSides,
// cropRow] from the page and pastes it onto a white canvas with a
// PadBottom margin below.
func (s *Segmenter) crop(page image.Image, cropRow int) image.Image {
	bounds := page.Bounds()

	x0 := s.cfg.PadSides + extraLeftPad
	x1 := bounds.Dx() - s.cfg.PadSides
	y0 := s.cfg.PadTop
	y1 := cropRow
	if x1 <= x0 {
		x0, x1 = 0, bounds.Dx()
	}
	if y1 <= y0 {
		y0 = 0
	}

	width := x1 - x0
	height := y1 - y0

	out := image.NewRGBA(image.Rect(0, 0, width, height+s.cfg.PadBottom))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	srcOrigin := bounds.Min.Add(image.Pt(x0, y0))
	draw.Draw(out, image.Rect(0, 0, width, height), page, srcOrigin, draw.Src)

	return out
}
