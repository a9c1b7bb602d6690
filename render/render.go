// Package render produces resized WebP variants of source images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	// additional decoders
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"img2webp/common"
	"img2webp/config"
	"img2webp/docx"
	"img2webp/sizes"
	"img2webp/utils/images"
)

// ErrSourceNotFound is wrapped by errors for tokens without source image.
var ErrSourceNotFound = errors.New("source image not found")

// Encoder writes image in target format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// State of produced output.
type State int

const (
	StateConverted State = iota
	StateExisting
)

func (s State) String() string {
	switch s {
	case StateConverted:
		return "converted"
	case StateExisting:
		return "existing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result describes single output file.
type Result struct {
	Token  docx.Token `json:"token"`
	Path   string     `json:"path"`
	Size   sizes.Size `json:"size"`
	Source string     `json:"source"`
	State  State      `json:"state"`
}

// OutputName returns file name of the variant of image name with a given
// width.
func OutputName(name string, width int) string {
	return name + strconv.Itoa(width) + ".webp"
}

// Renderer converts source images of tokens into resized variants.
type Renderer struct {
	loc          *Locator
	enc          Encoder
	skipExisting bool
	log          *zap.Logger
}

func New(loc *Locator, enc Encoder, cfg *config.ImagesConfig, log *zap.Logger) *Renderer {
	return &Renderer{
		loc:          loc,
		enc:          enc,
		skipExisting: cfg.SkipExisting,
		log:          log.Named("render"),
	}
}

func tokenError(kind common.ErrorKind, tok docx.Token, err error) error {
	return common.NewError(kind, err).WithDocument(tok.Document).WithCode(tok.Code).WithToken(tok.Name)
}

// Render produces all requested sizes of the token image under token output
// directory. Missing or unreadable source is reported as ImageFileError and
// nothing is produced. Failures of individual sizes are ImageConversionError,
// remaining sizes are still processed. Results are returned for everything
// which was produced or already existed.
func (r *Renderer) Render(ctx context.Context, tok docx.Token, list []sizes.Size) ([]Result, error) {
	src, ok := r.loc.Find(tok.Name)
	if !ok {
		return nil, tokenError(common.ErrorKindImageFile, tok,
			fmt.Errorf("%w (extensions tried: %s)", ErrSourceNotFound, strings.Join(r.loc.Extensions(), ", ")))
	}

	if err := os.MkdirAll(tok.OutputDir, 0755); err != nil {
		return nil, tokenError(common.ErrorKindImageConversion, tok, fmt.Errorf("unable to create output directory: %w", err))
	}

	var (
		img     image.Image
		results []Result
		errs    error
	)
	for _, size := range list {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}

		out := filepath.Join(tok.OutputDir, OutputName(tok.Name, size.Width))
		if r.skipExisting {
			if fi, err := os.Stat(out); err == nil && fi.Mode().IsRegular() {
				r.log.Debug("Output exists, skipping", zap.String("document", tok.Document), zap.String("token", tok.Name), zap.String("path", out))
				results = append(results, Result{Token: tok, Path: out, Size: size, Source: src, State: StateExisting})
				continue
			}
		}

		if img == nil {
			var err error
			if img, err = decode(src, list); err != nil {
				return results, multierr.Append(errs, tokenError(common.ErrorKindImageFile, tok, err))
			}
		}

		if err := r.write(out, Fit(img, size)); err != nil {
			errs = multierr.Append(errs, tokenError(common.ErrorKindImageConversion, tok, fmt.Errorf("size %s: %w", size, err)))
			continue
		}
		r.log.Debug("Image converted", zap.String("document", tok.Document), zap.String("code", tok.Code),
			zap.String("token", tok.Name), zap.Stringer("size", size), zap.String("path", out))
		results = append(results, Result{Token: tok, Path: out, Size: size, Source: src, State: StateConverted})
	}
	return results, errs
}

// decode loads source image applying EXIF orientation. SVG sources are
// rasterized wide enough for the largest requested size.
func decode(path string, list []sizes.Size) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".svg") {
		width := 0
		for _, s := range list {
			width = max(width, s.Width)
		}
		img, err := images.RasterizeSVG(data, width, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return img, nil
	}

	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("not an image (detected %q)", kind.MIME.Value)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("empty image")
	}
	return img, nil
}

// write encodes image into a temporary file next to the destination and
// renames it, so interrupted runs never leave partial outputs.
func (r *Renderer) write(path string, img image.Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = r.enc.Encode(tmp, img); err != nil {
		return fmt.Errorf("unable to encode: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
