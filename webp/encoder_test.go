package webp

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"img2webp/config"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WebPConfig
	}{
		{"lossless", config.WebPConfig{Quality: 100, Method: 6, Lossless: true}},
		{"lossy", config.WebPConfig{Quality: 80, Method: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := New(&tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			src := imaging.New(40, 20, color.NRGBA{10, 200, 30, 255})

			var buf bytes.Buffer
			if err := enc.Encode(&buf, src); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			cfg, err := webp.DecodeConfig(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("DecodeConfig() error = %v", err)
			}
			if cfg.Width != 40 || cfg.Height != 20 {
				t.Errorf("encoded size = %dx%d, want 40x20", cfg.Width, cfg.Height)
			}
		})
	}
}
