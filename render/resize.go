package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"img2webp/sizes"
)

// Fit resizes src to requested size. Zero height keeps aspect ratio. When
// aspect ratios differ image is scaled to fit and centered, square targets
// are padded with transparent pixels and all others with white.
func Fit(src image.Image, size sizes.Size) image.Image {
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()
	tw, th := size.Target(srcW, srcH)
	tw, th = max(tw, 1), max(th, 1)

	if size.KeepsAspect() || srcW*th == srcH*tw {
		return imaging.Resize(src, tw, th, imaging.Lanczos)
	}

	var nw, nh int
	if srcW*th > srcH*tw {
		// wider than target
		nw = tw
		nh = max(tw*srcH/srcW, 1)
	} else {
		nh = th
		nw = max(th*srcW/srcH, 1)
	}
	resized := imaging.Resize(src, nw, nh, imaging.Lanczos)

	bg := color.NRGBA{255, 255, 255, 255}
	if tw == th {
		bg = color.NRGBA{255, 255, 255, 0}
	}
	dst := imaging.New(tw, th, bg)
	return imaging.Paste(dst, resized, image.Pt((tw-nw)/2, (th-nh)/2))
}
