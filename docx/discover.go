package docx

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// Discover lists documents in dir in natural order. Editor lock files
// ("~$name.docx") are skipped.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".docx") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Sort(natural.StringSlice(files))
	return files, nil
}
