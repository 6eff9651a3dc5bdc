package pipeline

import (
	"net/url"

	"github.com/dunamismax/imagekit/internal/domain"
)

// transformSpec is the validated, typed form of a transform request's
// parameters.
type transformSpec struct {
	url     string
	width   int
	height  int
	format  domain.Format
	quality int
}

// parseSpec eagerly validates every range-checkable parameter before
// the cache is ever consulted, so a malformed request is rejected
// without spending a cache lookup or a single-flight slot on it: w/h,
// if present, must be positive; the url scheme must be http or
// https; q must lie in 1..100; f must be one of the configured
// allowed formats.
func parseSpec(params domain.Params, cfg Config) (transformSpec, error) {
	rawURL := params["url"]
	if rawURL == "" {
		return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "url scheme must be http or https")
	}

	width, err := positiveIntParam(params, "w")
	if err != nil {
		return transformSpec{}, err
	}
	height, err := positiveIntParam(params, "h")
	if err != nil {
		return transformSpec{}, err
	}

	format := cfg.DefaultFormat
	if raw, present := params["f"]; present {
		f, ok := domain.ParseFormat(raw)
		if !ok {
			return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "f must be one of jpeg, webp, avif")
		}
		format = f
	}
	if !cfg.allows(format) {
		return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "requested format is not allow-listed")
	}

	quality := 80
	if v, present, err := params.Int("q"); present {
		if err != nil {
			return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "q must be an integer")
		}
		if v < 1 || v > 100 {
			return transformSpec{}, domain.NewError(domain.KindInvalidArgument, "q must be in 1..100")
		}
		quality = v
	}

	return transformSpec{url: rawURL, width: width, height: height, format: format, quality: quality}, nil
}

func positiveIntParam(params domain.Params, key string) (int, error) {
	v, present, err := params.Int(key)
	if !present {
		return 0, nil
	}
	if err != nil {
		return 0, domain.NewError(domain.KindInvalidArgument, key+" must be an integer")
	}
	if v < 1 {
		return 0, domain.NewError(domain.KindInvalidArgument, key+" must be positive")
	}
	return v, nil
}
