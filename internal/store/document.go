package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"gopkg.in/yaml.v3"
)

// Gnomonic records the sphere tiling used for a detection run. Apertures are degrees.
type Gnomonic struct {
	Width     int     `yaml:"width"      json:"width"`
	ApertureX float64 `yaml:"aperture_x" json:"aperture_x"`
	ApertureY float64 `yaml:"aperture_y" json:"aperture_y"`
}

// Model records one configured leaf model and its nested child models.
type Model struct {
	ClassName           string  `yaml:"className"          json:"className"`
	File                string  `yaml:"model"              json:"model"`
	MinOccurrences      int     `yaml:"minOccurrences"     json:"minOccurrences"`
	MaxOccurrences      int     `yaml:"maxOccurrences"     json:"maxOccurrences"`
	MinChildOccurrences int     `yaml:"minChildOccurrences" json:"minChildOccurrences"`
	MaxChildOccurrences int     `yaml:"maxChildOccurrences" json:"maxChildOccurrences"`
	Children            []Model `yaml:"children,omitempty" json:"children,omitempty"`
}

// Cascade records the cascade algorithm parameters.
type Cascade struct {
	Models      []Model `yaml:"models"       json:"models"`
	ScaleFactor float64 `yaml:"scale_factor" json:"scale_factor"`
	MinQuality  float64 `yaml:"min_quality"  json:"min_quality"`
}

// Document is the persisted output of a detection run.
type Document struct {
	Algorithm      string    `yaml:"algorithm"                json:"algorithm"`
	Cascade        *Cascade  `yaml:"cascade,omitempty"        json:"cascade,omitempty"`
	Gnomonic       *Gnomonic `yaml:"gnomonic,omitempty"       json:"gnomonic,omitempty"`
	Source         string    `yaml:"source"                   json:"source"`
	Objects        []Record  `yaml:"objects"                  json:"objects"`
	InvalidObjects []Record  `yaml:"invalidObjects,omitempty" json:"invalidObjects,omitempty"`
}

// Detections converts the valid objects.
func (d *Document) Detections() ([]detector.DetectedObject, error) {
	return Objects(d.Objects)
}

// InvalidDetections converts the objects a reviewer rejected.
func (d *Document) InvalidDetections() ([]detector.DetectedObject, error) {
	return Objects(d.InvalidObjects)
}

// Decode reads a document and checks every record.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedRecord)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if _, err := doc.Detections(); err != nil {
		return nil, err
	}
	if _, err := doc.InvalidDetections(); err != nil {
		return nil, fmt.Errorf("invalidObjects: %w", err)
	}
	return &doc, nil
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: record path is user-provided
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *Document) error {
	if doc.Objects == nil {
		doc.Objects = []Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return enc.Close()
}

// Save writes doc to path, creating parent directories.
func Save(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: records are shared with reviewers
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
