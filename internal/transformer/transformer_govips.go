//go:build govips && cgo

package transformer

import (
	"context"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dunamismax/imagekit/internal/domain"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, dims Dimensions, format domain.Format, quality int) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Result{}, domain.Wrap(domain.KindNotAnImage, "decode source image", err)
	}
	defer img.Close()

	srcW, srcH := img.Width(), img.Height()
	if srcW == 0 || srcH == 0 {
		return Result{}, domain.NewError(domain.KindNotAnImage, "source has zero dimensions")
	}

	targetW, targetH := targetSize(srcW, srcH, dims)
	if targetW != srcW || targetH != srcH {
		scale := float64(targetW) / float64(srcW)
		if err := img.ResizeWithVScale(scale, float64(targetH)/float64(srcH), vips.KernelLanczos3); err != nil {
			return Result{}, domain.Wrap(domain.KindTransformError, "resize image", err)
		}
	}

	quality = clampQuality(quality)

	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return Result{}, domain.Wrap(domain.KindTransformError, "encode jpeg", err)
		}
		return Result{Bytes: data, Width: targetW, Height: targetH}, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.Lossless = false
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return Result{}, domain.Wrap(domain.KindTransformError, "encode webp", err)
		}
		return Result{Bytes: data, Width: targetW, Height: targetH}, nil
	case domain.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = quality
		params.Speed = 4
		data, _, err := img.ExportAvif(params)
		if err != nil {
			return Result{}, domain.Wrap(domain.KindTransformError, "encode avif", err)
		}
		return Result{Bytes: data, Width: targetW, Height: targetH}, nil
	default:
		return Result{}, domain.NewError(domain.KindInvalidArgument, "unsupported output format")
	}
}
