package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"img2webp/docx"
	"img2webp/render"
)

// Manifest file names in the log directory.
const (
	TokensManifest    = "all_image_names.json"
	ConvertedManifest = "all_converted_images.txt"
	MissingManifest   = "missing_images.txt"
	FailuresManifest  = "failures.txt"
)

// MissingImage is an image referenced from document without source file.
type MissingImage struct {
	Document string
	Name     string
}

// writeManifests stores batch results in the log directory. Content depends
// only on inputs, so reruns over unchanged inputs produce identical files.
func (p *pipeline) writeManifests(s *Summary) error {
	if err := os.MkdirAll(p.dirs.Logs, 0755); err != nil {
		return fmt.Errorf("unable to create log directory: %w", err)
	}

	tokens := s.Tokens
	if tokens == nil {
		tokens = []docx.Token{}
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal image names: %w", err)
	}

	var errs error
	errs = multierr.Append(errs, p.writeManifest(TokensManifest, append(data, '\n')))
	errs = multierr.Append(errs, p.writeManifest(ConvertedManifest, convertedManifest(s.Results)))
	errs = multierr.Append(errs, p.writeManifest(MissingManifest, p.missingManifest(s.Missing)))
	errs = multierr.Append(errs, p.writeManifest(FailuresManifest, failuresManifest(s.Failures)))
	return errs
}

func (p *pipeline) writeManifest(name string, data []byte) error {
	path := filepath.Join(p.dirs.Logs, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write %s: %w", name, err)
	}
	p.log.Debug("Manifest written", zap.String("path", path))
	if p.env.Rpt != nil {
		p.env.Rpt.Store("logs/"+name, path)
	}
	return nil
}

func convertedManifest(results []render.Result) []byte {
	var b bytes.Buffer
	for _, r := range results {
		b.WriteString(filepath.ToSlash(r.Path))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func (p *pipeline) missingManifest(missing []MissingImage) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Images referenced in documents with no source in %q\n", filepath.ToSlash(p.dirs.Images))
	fmt.Fprintf(&b, "# extensions tried: %v\n", p.env.Cfg.Images.Extensions)
	b.WriteString("# document: image\n")
	for _, m := range missing {
		fmt.Fprintf(&b, "%s: %s\n", m.Document, m.Name)
	}
	return b.Bytes()
}

func failuresManifest(failures error) []byte {
	var b bytes.Buffer
	for _, err := range multierr.Errors(failures) {
		b.WriteString(err.Error())
		b.WriteByte('\n')
	}
	return b.Bytes()
}
