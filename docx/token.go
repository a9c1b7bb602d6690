// Package docx extracts image name tokens from tables of word processing
// documents.
package docx

import (
	"fmt"
	"strings"
)

// Token is an image name found in a document table together with the code
// the table row belongs to. Field names follow mapping file produced by
// earlier tooling.
type Token struct {
	Document  string `json:"file_name"`
	OutputDir string `json:"output_dir"`
	Code      string `json:"code"`
	Name      string `json:"image_name"`
	Table     int    `json:"table"`
	Row       int    `json:"row"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s/%s (table %d, row %d)", t.Code, t.Name, t.Table, t.Row)
}

// ThumbnailName returns name of thumbnail image for key visual names (those
// having "-kv" or "_kv" in them).
func ThumbnailName(name string) (string, bool) {
	switch {
	case strings.Contains(name, "-kv"):
		return strings.ReplaceAll(name, "-kv", "-thumbnail"), true
	case strings.Contains(name, "_kv"):
		return strings.ReplaceAll(name, "_kv", "_thumbnail"), true
	}
	return "", false
}
