// Package sizes resolves output image sizes and media query breakpoints for
// section codes. Tables are built once from configuration and never change.
package sizes

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"go.uber.org/multierr"

	"img2webp/common"
	"img2webp/config"
)

// Size is a requested output size. Zero height means "keep aspect ratio".
type Size struct {
	Width  int
	Height int
}

// Target returns actual output dimensions for a source of given size.
func (s Size) Target(origW, origH int) (int, int) {
	if s.Height != 0 || origW <= 0 {
		return s.Width, s.Height
	}
	return s.Width, int(math.Round(float64(s.Width) * float64(origH) / float64(origW)))
}

// KeepsAspect reports if height is derived from the source.
func (s Size) KeepsAspect() bool {
	return s.Height == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Resolver holds per code tables. Codes with invalid configuration are
// remembered together with the reason and reported on every lookup.
type Resolver struct {
	sizes       map[string][]Size
	breakpoints map[string]*Breakpoints
	invalid     map[string]error
}

var errUnconfigured = errors.New("code has no configured sizes")

func configError(code string, err error) error {
	return common.NewError(common.ErrorKindConfiguration, err).WithCode(code)
}

// New builds resolver from configuration. Returned error aggregates problems
// found for individual codes, resolver is usable for all other codes even
// when error is not nil.
func New(cfg *config.Config) (*Resolver, error) {
	r := &Resolver{
		sizes:       make(map[string][]Size, len(cfg.Sizes)),
		breakpoints: make(map[string]*Breakpoints, len(cfg.Breakpoints)),
		invalid:     make(map[string]error),
	}

	var errs error
	for _, code := range slices.Sorted(maps.Keys(cfg.Sizes)) {
		list, err := parseSizes(cfg.Sizes[code])
		if err != nil {
			err = configError(code, err)
			r.invalid[code] = err
			errs = multierr.Append(errs, err)
			continue
		}
		r.sizes[code] = list
	}
	for _, code := range slices.Sorted(maps.Keys(cfg.Breakpoints)) {
		if _, bad := r.invalid[code]; bad {
			continue
		}
		bp, err := newBreakpoints(code, cfg.Breakpoints[code], r.sizes[code])
		if err != nil {
			err = configError(code, err)
			r.invalid[code] = err
			delete(r.sizes, code)
			errs = multierr.Append(errs, err)
			continue
		}
		r.breakpoints[code] = bp
	}
	return r, errs
}

func parseSizes(pairs [][]int) ([]Size, error) {
	if len(pairs) == 0 {
		return nil, errors.New("empty size list")
	}
	list := make([]Size, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("size %d: expected [width, height], got %v", i, p)
		}
		if p[0] <= 0 || p[1] < 0 {
			return nil, fmt.Errorf("size %d: invalid dimensions %v", i, p)
		}
		list = append(list, Size{Width: p[0], Height: p[1]})
	}
	return list, nil
}

// Sizes returns configured sizes for code. Unconfigured and misconfigured
// codes produce ConfigurationError, such codes are skipped by the caller.
func (r *Resolver) Sizes(code string) ([]Size, error) {
	if err, bad := r.invalid[code]; bad {
		return nil, err
	}
	list, ok := r.sizes[code]
	if !ok {
		return nil, configError(code, errUnconfigured)
	}
	return list, nil
}

// Breakpoints returns media query breakpoints for code, if any.
func (r *Resolver) Breakpoints(code string) (*Breakpoints, bool) {
	bp, ok := r.breakpoints[code]
	return bp, ok
}

// Codes returns all usable codes with sizes.
func (r *Resolver) Codes() []string {
	return slices.Sorted(maps.Keys(r.sizes))
}

// Choice is either a single width or two candidates depending on display
// context.
type Choice struct {
	Width    int
	Normal   int
	Carousel int
}

// Paired reports if choice depends on display context.
func (c Choice) Paired() bool {
	return c.Width == 0
}

// Pick returns width for display context.
func (c Choice) Pick(dc common.DisplayContext) int {
	if !c.Paired() {
		return c.Width
	}
	if dc == common.DisplayContextCarousel {
		return c.Carousel
	}
	return c.Normal
}

func (c Choice) widths() []int {
	if c.Paired() {
		return []int{c.Normal, c.Carousel}
	}
	return []int{c.Width}
}

func newChoice(wc config.WidthChoice) (Choice, error) {
	c := Choice{Width: wc.Width, Normal: wc.Normal, Carousel: wc.Carousel}
	switch {
	case c.Width < 0 || c.Normal < 0 || c.Carousel < 0:
		return c, errors.New("negative width")
	case c.Width > 0 && (c.Normal != 0 || c.Carousel != 0):
		return c, errors.New("either width or normal/carousel pair expected, not both")
	case c.Width == 0 && (c.Normal == 0 || c.Carousel == 0):
		return c, errors.New("width or both normal and carousel widths are required")
	}
	return c, nil
}

// Threshold matches media conditions with at least MinWidth viewport width
// and at least MinResolution pixel density (zero - any density).
type Threshold struct {
	MinWidth      int
	MinResolution float64
	Choice
}

// Breakpoints of a single code. Thresholds are sorted by descending
// MinWidth, ties by descending MinResolution.
type Breakpoints struct {
	Code          string
	Thresholds    []Threshold
	SourceDefault Choice
	ImgDefault    Choice
}

func newBreakpoints(code string, bc config.BreakpointConfig, sizes []Size) (*Breakpoints, error) {
	if len(sizes) == 0 {
		return nil, errors.New("breakpoints configured for code without sizes")
	}
	bp := &Breakpoints{Code: code}

	var err error
	if bp.SourceDefault, err = newChoice(bc.SourceDefault); err != nil {
		return nil, fmt.Errorf("source default: %w", err)
	}
	if bp.ImgDefault, err = newChoice(bc.ImgDefault); err != nil {
		return nil, fmt.Errorf("img default: %w", err)
	}
	for i, tc := range bc.Thresholds {
		if tc.MinWidth < 0 || tc.MinResolution < 0 {
			return nil, fmt.Errorf("threshold %d: negative condition", i)
		}
		c, err := newChoice(tc.WidthChoice)
		if err != nil {
			return nil, fmt.Errorf("threshold %d: %w", i, err)
		}
		bp.Thresholds = append(bp.Thresholds, Threshold{MinWidth: tc.MinWidth, MinResolution: tc.MinResolution, Choice: c})
	}
	slices.SortStableFunc(bp.Thresholds, func(a, b Threshold) int {
		if c := cmp.Compare(b.MinWidth, a.MinWidth); c != 0 {
			return c
		}
		return cmp.Compare(b.MinResolution, a.MinResolution)
	})

	// every width referenced from HTML must be produced by the renderer
	available := make(map[int]bool, len(sizes))
	for _, s := range sizes {
		available[s.Width] = true
	}
	choices := []Choice{bp.SourceDefault, bp.ImgDefault}
	for _, t := range bp.Thresholds {
		choices = append(choices, t.Choice)
	}
	for _, c := range choices {
		for _, w := range c.widths() {
			if !available[w] {
				return nil, fmt.Errorf("width %d is not among configured sizes", w)
			}
		}
	}
	return bp, nil
}

// Condition is what could be extracted from a media query.
type Condition struct {
	MinWidth      int
	HasWidth      bool
	Resolution    float64
	HasResolution bool
}

// Select returns choice for element role and media condition. Elements
// without conditions and conditions matching no threshold get role default.
func (b *Breakpoints) Select(role common.ElementRole, cond Condition) Choice {
	def := b.SourceDefault
	if role == common.ElementRoleImg {
		def = b.ImgDefault
	}
	if !cond.HasWidth && !cond.HasResolution {
		return def
	}
	width, res := cond.MinWidth, 1.0
	if cond.HasResolution {
		res = cond.Resolution
	}
	for _, t := range b.Thresholds {
		if t.MinWidth <= width && t.MinResolution <= res {
			return t.Choice
		}
	}
	return def
}
