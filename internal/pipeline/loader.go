package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dteintake/internal/pdfextract"
)

// ErrUnsupportedFile is returned for inputs that are neither JSON nor PDF.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Document is one loaded input. Err is set instead of Data when the file
// could not be read, parsed or extracted; the batch still reports it.
type Document struct {
	Source string
	Data   any
	Err    error
}

// TextExtractor turns a PDF into extracted fields.
type TextExtractor interface {
	Extract(path string) (*pdfextract.Result, error)
}

var _ TextExtractor = (*pdfextract.Extractor)(nil)

// LoadFile reads a .json or .pdf file into a Document.
func LoadFile(path string, extractor TextExtractor) Document {
	doc := Document{Source: path}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		doc.Data, doc.Err = decodeJSON(path)
	case ".pdf":
		if extractor == nil {
			doc.Err = fmt.Errorf("%w: no PDF extractor configured for %s", ErrUnsupportedFile, path)
			return doc
		}
		res, err := extractor.Extract(path)
		if err != nil {
			doc.Err = err
			return doc
		}
		doc.Data = res.Document()
	default:
		doc.Err = fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	return doc
}

// decodeJSON keeps numbers as json.Number so amounts are never rounded
// through float64.
func decodeJSON(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON in %s: %w", path, err)
	}
	return v, nil
}

// LoadDirectory loads every .json and .pdf file under dir, in lexical order.
func LoadDirectory(dir string, extractor TextExtractor) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSupported(path) {
			return nil
		}
		docs = append(docs, LoadFile(path, extractor))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return docs, nil
}

// LoadPaths loads files and directories in argument order.
func LoadPaths(paths []string, extractor TextExtractor) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("input not found: %w", err)
		}
		if !info.IsDir() {
			docs = append(docs, LoadFile(path, extractor))
			continue
		}
		dirDocs, err := LoadDirectory(path, extractor)
		if err != nil {
			return nil, err
		}
		docs = append(docs, dirDocs...)
	}
	return docs, nil
}

func isSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".pdf":
		return true
	}
	return false
}
