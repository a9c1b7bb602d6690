package render

import (
	"os"
	"path/filepath"
	"strings"
)

// Locator finds source images by name trying extensions in priority order.
type Locator struct {
	dir  string
	exts []string
}

func NewLocator(dir string, extensions []string) *Locator {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	return &Locator{dir: dir, exts: exts}
}

// Find returns path of the first existing regular file "<dir>/<name>.<ext>".
func (l *Locator) Find(name string) (string, bool) {
	for _, ext := range l.exts {
		candidate := filepath.Join(l.dir, name+"."+ext)
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// Exists reports if source image with a given name is available.
func (l *Locator) Exists(name string) bool {
	_, ok := l.Find(name)
	return ok
}

// Extensions returns lookup order.
func (l *Locator) Extensions() []string {
	return l.exts
}
