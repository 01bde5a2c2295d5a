package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// loadObjects reads a detection document and converts its valid objects.
func loadObjects(path string) (*store.Document, []detector.DetectedObject, error) {
	doc, err := store.Load(path)
	if err != nil {
		return nil, nil, err
	}
	objects, err := doc.Detections()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, objects, nil
}

// writeDocument saves doc to path, or encodes it to stdout when path is empty or "-".
func writeDocument(stdout io.Writer, path string, doc *store.Document) error {
	if path == "" || path == "-" {
		return store.Encode(stdout, doc)
	}
	return store.Save(path, doc)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
