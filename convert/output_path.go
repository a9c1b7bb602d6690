package convert

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"img2webp/config"
)

// documentStem returns document file name without extension.
func documentStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputDirName returns name of the directory holding document outputs. It
// cleans up name and if requested transliterates it.
func outputDirName(stem string, transliterate bool) string {
	if transliterate {
		if s := slug.Make(stem); s != "" {
			stem = s
		}
	}
	return config.CleanFileName(stem)
}

// htmlPaths returns location of the HTML template matching document and
// where rewritten result should go.
func htmlPaths(htmlDir, stem, outDir string, overwrite bool) (string, string) {
	src := filepath.Join(htmlDir, stem+".html")
	if overwrite {
		return src, src
	}
	return src, filepath.Join(outDir, stem+".html")
}
