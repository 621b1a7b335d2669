package rag

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Document is one loaded corpus file.
type Document struct {
	Source  string
	Content string
}

var textExtensions = map[string]struct{}{
	".txt":      {},
	".text":     {},
	".md":       {},
	".markdown": {},
	".rst":      {},
	".csv":      {},
	".json":     {},
	".yaml":     {},
	".yml":      {},
	".html":     {},
}

// loadDocuments reads every text-like file under dir. Files with unknown
// extensions or empty content are skipped. A missing directory is an error the
// engine turns into fallback mode.
func loadDocuments(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %s is not a directory", dir)
	}

	var documents []Document
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := textExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document %s: %w", path, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		relative, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			relative = path
		}
		documents = append(documents, Document{Source: relative, Content: string(content)})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return documents, nil
}
