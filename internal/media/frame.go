package media

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	bgBlurSigma = 40
	// Pillow-style brightness factor 0.35 expressed as a percentage delta.
	bgDarkenPercent = -65

	watermarkBandRatio   = 0.15
	watermarkBrightLevel = 200
	watermarkBrightRatio = 0.35
)

// PaddingLayout describes how a source image maps onto a fixed canvas:
// a cover-scaled blurred copy fills the background and the untouched
// original sits centered on top. All geometry is integer pixels.
type PaddingLayout struct {
	BGWidth, BGHeight int // background after cover scaling (>= canvas both axes)
	FGWidth, FGHeight int // foreground after fit scaling (<= canvas both axes)
	FGX, FGY          int // top-left of the centered foreground
}

// ComputePaddingLayout scales the background to cover the canvas (height
// first, width if still short) and the foreground to fit inside it, centered.
func ComputePaddingLayout(srcW, srcH, canvasW, canvasH int) PaddingLayout {
	var l PaddingLayout

	// Background: scale so height matches, then widen if a narrow source
	// still leaves bare canvas at the sides.
	l.BGHeight = canvasH
	l.BGWidth = srcW * canvasH / srcH
	if l.BGWidth < canvasW {
		l.BGWidth = canvasW
		l.BGHeight = srcH * canvasW / srcW
	}

	// Foreground: fit to width, fall back to height for tall sources.
	l.FGWidth = canvasW
	l.FGHeight = srcH * canvasW / srcW
	if l.FGHeight > canvasH {
		l.FGHeight = canvasH
		l.FGWidth = srcW * canvasH / srcH
	}

	l.FGX = (canvasW - l.FGWidth) / 2
	l.FGY = (canvasH - l.FGHeight) / 2
	return l
}

// composePaddedFrame renders the blurred-background padded frame in memory.
func composePaddedFrame(src image.Image, canvasW, canvasH int) image.Image {
	b := src.Bounds()
	layout := ComputePaddingLayout(b.Dx(), b.Dy(), canvasW, canvasH)

	bg := imaging.Resize(src, layout.BGWidth, layout.BGHeight, imaging.Lanczos)
	bg = imaging.CropCenter(bg, canvasW, canvasH)
	bg = imaging.Blur(bg, bgBlurSigma)
	bg = imaging.AdjustBrightness(bg, bgDarkenPercent)

	fg := imaging.Resize(src, layout.FGWidth, layout.FGHeight, imaging.Lanczos)

	frame := imaging.New(canvasW, canvasH, color.NRGBA{0, 0, 0, 255})
	frame = imaging.Paste(frame, bg, image.Pt(0, 0))
	frame = imaging.Paste(frame, fg, image.Pt(layout.FGX, layout.FGY))
	return frame
}

// PadToCanvas reads an image, composes the padded frame at the output
// resolution and writes it as JPEG. The result is handed straight to the
// still-segment renderer.
func PadToCanvas(srcPath, dstPath string, canvasW, canvasH int) error {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("opening image %s: %w", srcPath, err)
	}

	frame := composePaddedFrame(src, canvasW, canvasH)

	if err := imaging.Save(frame, dstPath, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("saving padded frame: %w", err)
	}
	return nil
}

// detectWatermarkBand reports whether the bottom band of the image looks like
// a stock-agency watermark strip: a high share of near-white pixels.
func detectWatermarkBand(img image.Image) bool {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()

	bandTop := b.Max.Y - int(float64(b.Dy())*watermarkBandRatio)
	total := 0
	bright := 0
	for y := bandTop; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := gray.At(x, y).RGBA()
			if uint8(r>>8) > watermarkBrightLevel {
				bright++
			}
			total++
		}
	}

	if total == 0 {
		return false
	}
	return float64(bright)/float64(total) > watermarkBrightRatio
}

// HasStockWatermark opens an image and runs the watermark heuristic. Errors
// count as "no watermark": a broken file fails later checks anyway.
func HasStockWatermark(path string) bool {
	img, err := imaging.Open(path)
	if err != nil {
		return false
	}
	return detectWatermarkBand(img)
}
