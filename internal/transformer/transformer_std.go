//go:build !govips || !cgo

package transformer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	_ "golang.org/x/image/webp"

	"github.com/dunamismax/imagekit/internal/domain"
)

type stdlibTransformer struct{}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte, dims Dimensions, format domain.Format, quality int) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	src, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return Result{}, domain.Wrap(domain.KindNotAnImage, "decode source image", err)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return Result{}, domain.NewError(domain.KindNotAnImage, "source has zero dimensions")
	}

	targetW, targetH := targetSize(srcW, srcH, dims)
	out := src
	if targetW != srcW || targetH != srcH {
		out = resizeLanczos3(src, targetW, targetH)
	}

	quality = clampQuality(quality)

	switch format {
	case domain.FormatJPEG:
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, out, &jpeg.Options{Quality: quality}); err != nil {
			return Result{}, domain.Wrap(domain.KindTransformError, "encode jpeg", err)
		}
		return Result{Bytes: buf.Bytes(), Width: targetW, Height: targetH}, nil
	case domain.FormatWebP, domain.FormatAVIF:
		return Result{}, domain.NewError(domain.KindTransformError, string(format)+" encoding requires the govips build tag")
	default:
		return Result{}, domain.NewError(domain.KindInvalidArgument, "unsupported output format")
	}
}

// resizeLanczos3 resamples src to w x h using a separable Lanczos3
// filter. No third-party pure-Go Lanczos3 implementation exists
// anywhere in the example pack, so this is hand-rolled.
func resizeLanczos3(src image.Image, w, h int) *image.RGBA {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	rgba := toRGBA(src)

	horizontal := resampleHorizontal(rgba, srcW, srcH, w)
	return resampleVertical(horizontal, w, srcH, h)
}

func toRGBA(src image.Image) *image.RGBA {
	if r, ok := src.(*image.RGBA); ok {
		return r
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func resampleHorizontal(src *image.RGBA, srcW, srcH, dstW int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, dstW, srcH))
	weights := lanczosWeights(srcW, dstW)
	for y := 0; y < srcH; y++ {
		for x := 0; x < dstW; x++ {
			dst.SetRGBA(x, y, sampleRow(src, y, weights[x]))
		}
	}
	return dst
}

func resampleVertical(src *image.RGBA, srcW, srcH, dstH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, srcW, dstH))
	weights := lanczosWeights(srcH, dstH)
	for x := 0; x < srcW; x++ {
		for y := 0; y < dstH; y++ {
			dst.SetRGBA(x, y, sampleColumn(src, x, weights[y]))
		}
	}
	return dst
}

type tap struct {
	index  int
	weight float64
}

// lanczosWeights computes, for each destination index, the set of
// source taps and normalized weights under a 3-lobe Lanczos kernel.
func lanczosWeights(srcN, dstN int) [][]tap {
	const a = 3.0
	scale := float64(srcN) / float64(dstN)
	filterScale := scale
	if filterScale < 1 {
		filterScale = 1
	}
	radius := a * filterScale

	out := make([][]tap, dstN)
	for d := 0; d < dstN; d++ {
		center := (float64(d)+0.5)*scale - 0.5
		lo := int(math.Floor(center - radius))
		hi := int(math.Ceil(center + radius))

		var taps []tap
		var sum float64
		for s := lo; s <= hi; s++ {
			if s < 0 || s >= srcN {
				continue
			}
			w := lanczosKernel((float64(s)-center)/filterScale, a)
			if w == 0 {
				continue
			}
			taps = append(taps, tap{index: s, weight: w})
			sum += w
		}
		if sum != 0 {
			for i := range taps {
				taps[i].weight /= sum
			}
		} else if len(taps) == 0 {
			clamped := d
			if clamped >= srcN {
				clamped = srcN - 1
			}
			taps = []tap{{index: clamped, weight: 1}}
		}
		out[d] = taps
	}
	return out
}

func lanczosKernel(x, a float64) float64 {
	if x == 0 {
		return 1
	}
	if x < -a || x > a {
		return 0
	}
	piX := math.Pi * x
	return a * math.Sin(piX) * math.Sin(piX/a) / (piX * piX)
}

func sampleRow(src *image.RGBA, y int, taps []tap) color.RGBA {
	var r, g, b, alpha float64
	for _, t := range taps {
		c := src.RGBAAt(t.index, y)
		r += float64(c.R) * t.weight
		g += float64(c.G) * t.weight
		b += float64(c.B) * t.weight
		alpha += float64(c.A) * t.weight
	}
	return clampColor(r, g, b, alpha)
}

func sampleColumn(src *image.RGBA, x int, taps []tap) color.RGBA {
	var r, g, b, alpha float64
	for _, t := range taps {
		c := src.RGBAAt(x, t.index)
		r += float64(c.R) * t.weight
		g += float64(c.G) * t.weight
		b += float64(c.B) * t.weight
		alpha += float64(c.A) * t.weight
	}
	return clampColor(r, g, b, alpha)
}

func clampColor(r, g, b, a float64) color.RGBA {
	return color.RGBA{
		R: clampByte(r),
		G: clampByte(g),
		B: clampByte(b),
		A: clampByte(a),
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
