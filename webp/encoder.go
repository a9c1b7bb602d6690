// Package webp encodes images with libwebp. It is the only package requiring
// cgo.
package webp

import (
	"fmt"
	"image"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"img2webp/config"
)

// Encoder implements render.Encoder.
type Encoder struct {
	options *encoder.Options
}

// New prepares encoder options from configuration. In lossless mode quality
// controls compression effort rather than fidelity.
func New(cfg *config.WebPConfig) (*Encoder, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(cfg.Quality))
	if err != nil {
		return nil, fmt.Errorf("unable to prepare webp encoder options: %w", err)
	}
	options.Lossless = cfg.Lossless
	options.Method = cfg.Method
	return &Encoder{options: options}, nil
}

func (e *Encoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, e.options)
}
