// Package transformer implements decode/resize/encode of image
// bytes. Two build variants exist: the govips variant (build tag
// govips,cgo) backs Transform with libvips for every allowed format;
// the stdlib variant is the default build and fully supports JPEG
// only, returning an explicit error for webp/avif.
package transformer

import (
	"context"

	"github.com/dunamismax/imagekit/internal/domain"
)

// Dimensions carries the requested target size. Either field may be
// zero to mean "unspecified."
type Dimensions struct {
	Width  int
	Height int
}

// Result is the encoded output plus the pixel dimensions it was
// actually rendered at, used upstream for usage accounting.
type Result struct {
	Bytes  []byte
	Width  int
	Height int
}

// Transformer decodes, resizes, and re-encodes image bytes.
type Transformer interface {
	// Transform produces encoded bytes in format at the given quality
	// (1..100), resizing to fit within dims while preserving aspect
	// ratio.
	Transform(ctx context.Context, input []byte, dims Dimensions, format domain.Format, quality int) (Result, error)
}

// New constructs the build-appropriate Transformer.
func New() Transformer {
	return newTransformer()
}

// targetSize computes the output width/height from the source
// dimensions and the requested dims: unset dims pass the source size
// through; a single dim preserves aspect ratio; both dims treat the
// request as a bounding box and scale by the smaller ratio.
func targetSize(srcW, srcH int, dims Dimensions) (int, int) {
	switch {
	case dims.Width <= 0 && dims.Height <= 0:
		return srcW, srcH
	case dims.Width > 0 && dims.Height <= 0:
		h := roundDiv(srcH*dims.Width, srcW)
		return dims.Width, max(1, h)
	case dims.Height > 0 && dims.Width <= 0:
		w := roundDiv(srcW*dims.Height, srcH)
		return max(1, w), dims.Height
	default:
		scaleW := float64(dims.Width) / float64(srcW)
		scaleH := float64(dims.Height) / float64(srcH)
		scale := scaleW
		if scaleH < scaleW {
			scale = scaleH
		}
		w := max(1, roundHalfAwayFromZero(float64(srcW)*scale))
		h := max(1, roundHalfAwayFromZero(float64(srcH)*scale))
		return w, h
	}
}

func roundDiv(num, den int) int {
	return roundHalfAwayFromZero(float64(num) / float64(den))
}

func roundHalfAwayFromZero(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// clampQuality saturates an out-of-range quality value into 1..100
// rather than rejecting it outright.
func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}
