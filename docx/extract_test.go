package docx

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"img2webp/common"
	"img2webp/config"
	"img2webp/pattern"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// row describes a table row, each cell may hold several paragraphs
// separated by "\n".
type row []string

func tableXML(rows ...row) string {
	var b strings.Builder
	b.WriteString("<w:tbl><w:tblPr/>")
	for _, r := range rows {
		b.WriteString("<w:tr>")
		for _, cell := range r {
			b.WriteString("<w:tc><w:tcPr/>")
			for p := range strings.SplitSeq(cell, "\n") {
				b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
				b.WriteString(p)
				b.WriteString("</w:t></w:r></w:p>")
			}
			b.WriteString("</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + wordNS + `><w:body>` + body + `<w:sectPr/></w:body></w:document>`
}

func writeDocx(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for n, content := range parts {
		fw, err := w.Create(n)
		if err != nil {
			t.Fatalf("zip create %s: %v", n, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", n, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return path
}

func newTestExtractor(t *testing.T, exists ExistsFunc) (*Extractor, *config.Config) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	m, err := pattern.NewFromConfig(&cfg.Patterns)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	return NewExtractor(m, &cfg.Documents, exists, zaptest.NewLogger(t)), cfg
}

func TestExtract_SingleRow(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	path := writeDocx(t, t.TempDir(), "page.docx", map[string]string{
		"word/document.xml": documentXML(tableXML(row{"COMFRPTC09", "＜画像＞foo-01"})),
	})

	tokens, err := e.Extract(path, "output/page")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("got %d tokens, want 1: %v", len(tokens), tokens)
	}
	want := Token{Document: "page.docx", OutputDir: "output/page", Code: "COMFRPTC09", Name: "foo-01", Table: 1, Row: 1}
	if tokens[0] != want {
		t.Errorf("token = %+v, want %+v", tokens[0], want)
	}
}

func TestExtract_OrderAndCodes(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	body := tableXML(
		row{"COMFRPTC12", "見出し"},
		row{"", "＜画像1＞a-01\n\n画像名：a-02"},
		row{"GSTFRPTA15", "＜画像（PC）＞b-01 ＜画像（SP）＞b-02"},
	) + `<w:p><w:r><w:t>＜画像＞outside-table</w:t></w:r></w:p>` +
		tableXML(row{"COMFRPTC23\nnote", "〈画像名〉c-01"})
	path := writeDocx(t, t.TempDir(), "doc.docx", map[string]string{"word/document.xml": documentXML(body)})

	tokens, err := e.Extract(path, "out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	var got []string
	for _, tok := range tokens {
		got = append(got, tok.Code+":"+tok.Name)
	}
	want := []string{
		"COMFRPTC12:a-01",
		"COMFRPTC12:a-02",
		"GSTFRPTA15:b-01",
		"GSTFRPTA15:b-02",
		"COMFRPTC23:c-01",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tokens = %v, want %v", got, want)
	}
	if tokens[4].Table != 2 || tokens[2].Row != 3 {
		t.Errorf("unexpected positions: %+v", tokens)
	}
}

func TestExtract_ContentColumns(t *testing.T) {
	e, cfg := newTestExtractor(t, nil)
	cfg.Documents.ContentColumns = []int{2}
	path := writeDocx(t, t.TempDir(), "doc.docx", map[string]string{
		"word/document.xml": documentXML(tableXML(row{"COMFRPTC09", "＜画像＞skip-01", "＜画像＞keep-01"})),
	})
	tokens, err := e.Extract(path, "out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Name != "keep-01" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestExtract_DefaultContentColumn(t *testing.T) {
	content := row{"COMFRPTC09", "＜画像＞foo-01", "備考: 旧画像名：old-01"}

	e, _ := newTestExtractor(t, nil)
	path := writeDocx(t, t.TempDir(), "doc.docx", map[string]string{
		"word/document.xml": documentXML(tableXML(content)),
	})
	tokens, err := e.Extract(path, "out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Name != "foo-01" {
		t.Errorf("remarks column must be ignored, tokens = %v", tokens)
	}

	// empty list scans every column
	e, cfg := newTestExtractor(t, nil)
	cfg.Documents.ContentColumns = nil
	tokens, err = e.Extract(path, "out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 2 || tokens[1].Name != "old-01" {
		t.Errorf("all columns: tokens = %v", tokens)
	}
}

func TestExtract_Thumbnails(t *testing.T) {
	exists := func(name string) bool { return name == "top-thumbnail" }
	e, _ := newTestExtractor(t, exists)
	path := writeDocx(t, t.TempDir(), "doc.docx", map[string]string{
		"word/document.xml": documentXML(tableXML(row{"COMFRPTC12", "＜画像＞top-kv\n＜画像＞side_kv"})),
	})
	tokens, err := e.Extract(path, "out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(tokens), tokens)
	}
	last := tokens[2]
	if last.Code != "THUMBNAIL" || last.Name != "top-thumbnail" {
		t.Errorf("derived token = %+v", last)
	}
}

func TestExtract_Errors(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "broken.docx")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.docx")},
		{"not a container", notZip},
		{"no document part", writeDocx(t, dir, "nopart.docx", map[string]string{"word/styles.xml": "<styles/>"})},
		{"bad xml", writeDocx(t, dir, "badxml.docx", map[string]string{"word/document.xml": "<w:document"})},
		{"no tables", writeDocx(t, dir, "notables.docx", map[string]string{
			"word/document.xml": documentXML(`<w:p><w:r><w:t>＜画像＞x-01</w:t></w:r></w:p>`),
		})},
	}

	e, _ := newTestExtractor(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.path, "out")
			if !errors.Is(err, common.ErrDocumentFormat) {
				t.Fatalf("Extract() error = %v, want DocumentFormatError", err)
			}
			var ce *common.Error
			if !errors.As(err, &ce) || ce.Document != filepath.Base(tt.path) {
				t.Errorf("error context = %v", err)
			}
		})
	}
}

func TestThumbnailName(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"top-kv", "top-thumbnail", true},
		{"top_kv01", "top_thumbnail01", true},
		{"top-01", "", false},
	}
	for _, tt := range tests {
		got, ok := ThumbnailName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ThumbnailName(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"page10.docx", "page2.docx", "~$page2.docx", "notes.txt", "Page1.DOCX"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.docx"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := "Page1.DOCX,page2.docx,page10.docx"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Discover() = %s, want %s", got, want)
	}

	if _, err := Discover(filepath.Join(dir, "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestDump(t *testing.T) {
	tokens := []Token{
		{Code: "COMFRPTC09", Name: "foo-01", Table: 1, Row: 1},
		{Code: "COMFRPTC09", Name: "foo-02", Table: 1, Row: 1},
		{Code: "GSTFRPTA15", Name: "bar", Table: 1, Row: 3},
		{Code: "THUMBNAIL", Name: "baz", Table: 2, Row: 1},
	}
	want := `document "page.docx"
  table 1
    row 1
      "foo-01" code=COMFRPTC09
      "foo-02" code=COMFRPTC09
    row 3
      "bar" code=GSTFRPTA15
  table 2
    row 1
      "baz" code=THUMBNAIL
`
	if got := Dump("page.docx", tokens); got != want {
		t.Errorf("Dump() =\n%s\nwant\n%s", got, want)
	}
}
