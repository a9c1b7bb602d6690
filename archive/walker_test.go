package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func createZip(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return zipPath
}

func TestWalk(t *testing.T) {
	zipPath := createZip(t, map[string]string{
		"word/document.xml":     "<doc/>",
		"word/styles.xml":       "<styles/>",
		"[Content_Types].xml":   "<types/>",
		"docProps/core.xml":     "<core/>",
		"word/media/image1.png": "png",
	})

	t.Run("walk with prefix", func(t *testing.T) {
		visited := map[string]bool{}
		err := Walk(zipPath, "word/", func(archive string, file *zip.File) error {
			if archive != zipPath {
				t.Errorf("archive = %s, want %s", archive, zipPath)
			}
			visited[file.Name] = true
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(visited) != 3 || !visited["word/document.xml"] || visited["docProps/core.xml"] {
			t.Errorf("visited = %v", visited)
		}
	})

	t.Run("stop walking", func(t *testing.T) {
		count := 0
		err := Walk(zipPath, "", func(string, *zip.File) error {
			count++
			return ErrStop
		})
		if err != nil {
			t.Errorf("Walk() error = %v, want nil on ErrStop", err)
		}
		if count != 1 {
			t.Errorf("visited %d files, want 1", count)
		}
	})

	t.Run("walkFn returns error", func(t *testing.T) {
		want := errors.New("boom")
		err := Walk(zipPath, "", func(string, *zip.File) error { return want })
		if !errors.Is(err, want) {
			t.Errorf("Walk() error = %v, want %v", err, want)
		}
	})
}

func TestWalk_InvalidArchive(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		if err := Walk("/nonexistent/file.zip", "", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("expected error for nonexistent archive")
		}
	})

	t.Run("invalid zip file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.docx")
		if err := os.WriteFile(path, []byte("this is not a zip file"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := Walk(path, "", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("expected error for invalid zip")
		}
	})

	t.Run("unsafe entry", func(t *testing.T) {
		zipPath := createZip(t, map[string]string{"../evil.xml": "x"})
		if err := Walk(zipPath, "", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("expected error for path traversal entry")
		}
	})
}

func TestReadPart(t *testing.T) {
	zipPath := createZip(t, map[string]string{
		"word/document.xml":      "<document/>",
		"word/document.xml.rels": "<rels/>",
	})

	data, err := ReadPart(zipPath, "word/document.xml")
	if err != nil {
		t.Fatalf("ReadPart() error = %v", err)
	}
	if string(data) != "<document/>" {
		t.Errorf("ReadPart() = %q", data)
	}

	_, err = ReadPart(zipPath, "word/missing.xml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadPart() error = %v, want ErrNotFound", err)
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"word/document.xml", true},
		{"a/../b", false},
		{"/etc/passwd", false},
		{`\windows`, false},
		{"..", false},
		{"a..b/c", true},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.name); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
