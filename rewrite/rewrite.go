// Package rewrite replaces references to source images in HTML templates with
// converted WebP variants chosen by media query breakpoints.
package rewrite

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"img2webp/common"
	"img2webp/config"
	"img2webp/css"
	"img2webp/docx"
	"img2webp/render"
	"img2webp/sizes"
)

// BreakpointSource provides breakpoints per code.
type BreakpointSource interface {
	Breakpoints(code string) (*sizes.Breakpoints, bool)
}

// Replacement records a single rewritten reference.
type Replacement struct {
	Line    int    `json:"line"`
	Element string `json:"element"`
	Attr    string `json:"attr"`
	Code    string `json:"code"`
	Token   string `json:"token"`
	Media   string `json:"media,omitempty"`
	Context string `json:"context,omitempty"`
	Old     string `json:"old"`
	New     string `json:"new"`
}

// reference attributes per element
var referenceAttrs = map[common.ElementRole][]string{
	common.ElementRoleSource: {"srcset", "data-srcset"},
	common.ElementRoleImg:    {"src", "data-src", "srcset", "data-srcset"},
}

var (
	// attribute with value inside raw start tag
	attrRe = regexp.MustCompile(`[\s/]([^\s"'<>/=]+)\s*=\s*("[^"]*"|'[^']*'|[^\s"'<>` + "`" + `=]+)`)
	// image file name: stem and extension
	refRe = regexp.MustCompile(`(?i)([^"'\s,/\\?#]+)\.(?:jpe?g|png|webp)\b`)
)

// Rewriter rewrites HTML text, it never touches the file system.
type Rewriter struct {
	bps      BreakpointSource
	media    *css.Parser
	carousel []byte
	normal   []byte
	window   int
	log      *zap.Logger
}

func New(cfg *config.HTMLConfig, bps BreakpointSource, log *zap.Logger) *Rewriter {
	log = log.Named("rewrite")
	return &Rewriter{
		bps:      bps,
		media:    css.NewParser(log),
		carousel: []byte(cfg.CarouselMarker),
		normal:   []byte(cfg.NormalMarker),
		window:   cfg.ScanLines,
		log:      log,
	}
}

// names maps image names to codes, longest names first so references are
// attributed to the most specific name.
type names struct {
	list  []string
	codes map[string]string
}

func newNames(tokens []docx.Token) *names {
	n := &names{codes: make(map[string]string, len(tokens))}
	for _, t := range tokens {
		if _, seen := n.codes[t.Name]; seen {
			continue
		}
		n.codes[t.Name] = t.Code
		n.list = append(n.list, t.Name)
	}
	slices.SortStableFunc(n.list, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	return n
}

func (n *names) lookup(stem string) (string, string, bool) {
	for _, name := range n.list {
		if strings.HasPrefix(stem, name) {
			return name, n.codes[name], true
		}
	}
	return "", "", false
}

// Rewrite returns HTML with references to token images replaced. Everything
// outside of rewritten attribute values is copied byte for byte. On error
// original text is returned unchanged.
func (r *Rewriter) Rewrite(doc string, src []byte, tokens []docx.Token) ([]byte, []Replacement, error) {
	if !utf8.Valid(src) {
		return src, nil, common.NewError(common.ErrorKindHtmlProcessing, errors.New("not a valid UTF-8 text")).WithDocument(doc)
	}
	if len(tokens) == 0 {
		return src, nil, nil
	}

	var (
		n       = newNames(tokens)
		out     bytes.Buffer
		repls   []Replacement
		offset  int
		skipped = make(map[string]bool)
	)
	out.Grow(len(src))

	z := html.NewTokenizer(bytes.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return src, nil, common.NewError(common.ErrorKindHtmlProcessing, fmt.Errorf("tokenizer: %w", err)).WithDocument(doc)
			}
			break
		}
		// tokenizer lower-cases names in place, keep pristine copy
		raw := bytes.Clone(z.Raw())
		start := offset
		offset += len(raw)

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		tag, hasAttr := z.TagName()
		var role common.ElementRole
		switch string(tag) {
		case "source":
			role = common.ElementRoleSource
		case "img":
			role = common.ElementRoleImg
		default:
			out.Write(raw)
			continue
		}
		var media string
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) == "media" {
				media = string(val)
			}
		}

		el := &element{role: role, media: media, raw: raw, pos: start, src: src}
		rewritten, rs := r.element(doc, el, n, skipped)
		out.Write(rewritten)
		repls = append(repls, rs...)
	}

	if offset != len(src) {
		return src, nil, common.NewError(common.ErrorKindHtmlProcessing,
			fmt.Errorf("tokenizer consumed %d bytes out of %d", offset, len(src))).WithDocument(doc)
	}
	if len(repls) == 0 {
		return src, nil, nil
	}
	return out.Bytes(), repls, nil
}

type element struct {
	role  common.ElementRole
	media string
	raw   []byte
	pos   int
	src   []byte

	dc      common.DisplayContext
	dcKnown bool
}

func (r *Rewriter) element(doc string, el *element, n *names, skipped map[string]bool) ([]byte, []Replacement) {
	var (
		repls []Replacement
		b     bytes.Buffer
		last  int
	)
	allowed := referenceAttrs[el.role]

	for _, m := range attrRe.FindAllSubmatchIndex(el.raw, -1) {
		attr := strings.ToLower(string(el.raw[m[2]:m[3]]))
		if !slices.Contains(allowed, attr) {
			continue
		}
		vs, ve := m[4], m[5]
		if q := el.raw[vs]; q == '"' || q == '\'' {
			vs, ve = vs+1, ve-1
		}
		value := el.raw[vs:ve]

		for _, rm := range refRe.FindAllSubmatchIndex(value, -1) {
			stem := string(value[rm[2]:rm[3]])
			name, code, ok := n.lookup(stem)
			if !ok {
				continue
			}
			bp, ok := r.bps.Breakpoints(code)
			if !ok {
				if !skipped[code] {
					skipped[code] = true
					r.log.Debug("No breakpoints for code, references left as is", zap.String("document", doc), zap.String("code", code), zap.String("token", name))
				}
				continue
			}

			width, dc := r.width(bp, el)
			repl := render.OutputName(name, width)
			old := string(value[rm[0]:rm[1]])

			b.Write(el.raw[last : vs+rm[0]])
			b.WriteString(repl)
			last = vs + rm[1]

			rec := Replacement{
				Line:    lineOf(el.src, el.pos),
				Element: el.role.String(),
				Attr:    attr,
				Code:    code,
				Token:   name,
				Media:   el.media,
				Old:     old,
				New:     repl,
			}
			if dc != nil {
				rec.Context = dc.String()
			}
			r.log.Debug("Reference replaced", zap.String("document", doc), zap.Int("line", rec.Line),
				zap.String("code", code), zap.String("token", name), zap.String("media", el.media),
				zap.String("context", rec.Context), zap.String("old", old), zap.String("new", repl))
			repls = append(repls, rec)
		}
	}
	if len(repls) == 0 {
		return el.raw, nil
	}
	b.Write(el.raw[last:])
	return b.Bytes(), repls
}

// width selects variant for element. Display context is returned only when
// it was needed to decide.
func (r *Rewriter) width(bp *sizes.Breakpoints, el *element) (int, *common.DisplayContext) {
	var cond sizes.Condition
	if el.role == common.ElementRoleSource && el.media != "" {
		mq := r.media.ParseMedia(el.media)
		cond.MinWidth, cond.HasWidth = mq.MinWidth()
		cond.Resolution, cond.HasResolution = mq.MinResolution()
	}
	choice := bp.Select(el.role, cond)
	if !choice.Paired() {
		return choice.Width, nil
	}
	if !el.dcKnown {
		el.dc = r.classify(el.src, el.pos)
		el.dcKnown = true
	}
	return choice.Pick(el.dc), &el.dc
}

// classify scans lines upward from pos, the line holding pos included, and
// returns context of the first marker found. Carousel marker is checked
// first on every line.
func (r *Rewriter) classify(src []byte, pos int) common.DisplayContext {
	end := pos
	for range r.window {
		start := bytes.LastIndexByte(src[:end], '\n') + 1
		line := src[start:end]
		if bytes.Contains(line, r.carousel) {
			return common.DisplayContextCarousel
		}
		if bytes.Contains(line, r.normal) {
			return common.DisplayContextNormal
		}
		if start == 0 {
			break
		}
		end = start - 1
	}
	return common.DisplayContextNormal
}

func lineOf(src []byte, pos int) int {
	return bytes.Count(src[:pos], []byte{'\n'}) + 1
}
