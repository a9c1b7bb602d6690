package docx

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"img2webp/archive"
	"img2webp/common"
	"img2webp/config"
	"img2webp/pattern"
)

const documentPart = "word/document.xml"

// ExistsFunc reports if source image with a given name is available.
type ExistsFunc func(name string) bool

// Extractor walks document tables and collects image name tokens.
type Extractor struct {
	matcher *pattern.Matcher
	cfg     *config.DocumentsConfig
	exists  ExistsFunc
	log     *zap.Logger
}

// NewExtractor creates extractor. exists is only consulted when thumbnail
// derivation is enabled and may be nil otherwise.
func NewExtractor(m *pattern.Matcher, cfg *config.DocumentsConfig, exists ExistsFunc, log *zap.Logger) *Extractor {
	return &Extractor{
		matcher: m,
		cfg:     cfg,
		exists:  exists,
		log:     log.Named("docx"),
	}
}

func formatError(doc string, err error) error {
	return common.NewError(common.ErrorKindDocumentFormat, err).WithDocument(doc)
}

// Extract returns tokens of the document in document order. Derived thumbnail
// tokens, if any, follow the tokens found in tables.
func (e *Extractor) Extract(path, outputDir string) ([]Token, error) {
	name := filepath.Base(path)

	data, err := archive.ReadPart(path, documentPart)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return nil, formatError(name, fmt.Errorf("not a valid docx file: missing %s", documentPart))
		}
		return nil, formatError(name, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, formatError(name, fmt.Errorf("unable to parse %s: %w", documentPart, err))
	}
	root := doc.Root()
	if root == nil || root.Tag != "document" {
		return nil, formatError(name, fmt.Errorf("unexpected root element in %s", documentPart))
	}
	body := root.SelectElement("body")
	if body == nil {
		return nil, formatError(name, fmt.Errorf("document has no body"))
	}
	tables := body.SelectElements("tbl")
	if len(tables) == 0 {
		return nil, formatError(name, fmt.Errorf("document has no tables"))
	}

	e.log.Debug("Extraction starting", zap.String("document", name), zap.Int("tables", len(tables)))

	var tokens []Token
	for i, tbl := range tables {
		tokens = append(tokens, e.table(tbl, i+1, name, outputDir)...)
	}
	if e.cfg.DeriveThumbnails && len(tokens) > 0 {
		tokens = append(tokens, e.thumbnails(tokens)...)
	}

	e.log.Info("Image names extracted", zap.String("document", name), zap.Int("count", len(tokens)))
	return tokens, nil
}

func (e *Extractor) table(tbl *etree.Element, index int, doc, outputDir string) []Token {
	rows := tbl.SelectElements("tr")
	if len(rows) == 0 {
		e.log.Debug("Empty table", zap.String("document", doc), zap.Int("table", index))
		return nil
	}

	// first row code cell defines the code for the whole table, unless later
	// rows carry codes of their own
	var code string
	if cells := rows[0].SelectElements("tc"); e.cfg.CodeColumn < len(cells) {
		text := cellText(cells[e.cfg.CodeColumn])
		if c, ok := e.matcher.Code(text); ok {
			code = c
		} else {
			code = strings.ReplaceAll(strings.TrimSpace(text), "\n", "")
		}
	}
	e.log.Debug("Table", zap.String("document", doc), zap.Int("table", index), zap.String("code", code))

	var tokens []Token
	for r, row := range rows {
		cells := row.SelectElements("tc")
		if r > 0 && e.cfg.CodeColumn < len(cells) {
			if c, ok := e.matcher.Code(cellText(cells[e.cfg.CodeColumn])); ok && c != code {
				e.log.Debug("Code switched", zap.String("document", doc), zap.Int("table", index), zap.Int("row", r+1), zap.String("code", c))
				code = c
			}
		}
		for c, cell := range cells {
			if len(e.cfg.ContentColumns) > 0 && !slices.Contains(e.cfg.ContentColumns, c) {
				continue
			}
			for _, n := range e.matcher.FindAll(cellText(cell)) {
				tokens = append(tokens, Token{
					Document:  doc,
					OutputDir: outputDir,
					Code:      code,
					Name:      n,
					Table:     index,
					Row:       r + 1,
				})
			}
		}
	}
	return tokens
}

func (e *Extractor) thumbnails(tokens []Token) []Token {
	var derived []Token
	for _, t := range tokens {
		name, ok := ThumbnailName(t.Name)
		if !ok || e.exists == nil || !e.exists(name) {
			continue
		}
		d := t
		d.Code = e.cfg.ThumbnailCode
		d.Name = name
		derived = append(derived, d)
	}
	if len(derived) > 0 {
		names := make([]string, 0, len(derived))
		for _, d := range derived {
			names = append(names, d.Name)
		}
		e.log.Info("Thumbnail image names added", zap.String("document", tokens[0].Document), zap.Strings("names", names))
	}
	return derived
}

// cellText returns text of cell paragraphs, one line per paragraph. Nested
// tables are not included.
func cellText(tc *etree.Element) string {
	var lines []string
	for _, p := range tc.SelectElements("p") {
		var b strings.Builder
		paragraphText(p, &b)
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func paragraphText(el *etree.Element, b *strings.Builder) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "t":
			b.WriteString(child.Text())
		case "tab":
			b.WriteByte('\t')
		case "br", "cr":
			b.WriteByte('\n')
		case "del", "delText", "instrText", "txbxContent":
			// deleted revisions and field codes are not visible text
		default:
			paragraphText(child, b)
		}
	}
}
