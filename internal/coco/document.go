package coco

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// Top-level members owned by this package.
const (
	KeyImages      = "images"
	KeyAnnotations = "annotations"
	KeyCategories  = "categories"
)

// Document is a decoded annotation document. It keeps the raw top-level
// object so that members other than images, annotations and categories
// survive a load/save round trip unchanged.
type Document struct {
	members map[string]json.RawMessage
	dataset Dataset
}

// Decode parses an annotation document.
//
// "images" and "annotations" are required; "categories" is optional and may
// be null. Each must be an array of objects, and every image must declare a
// positive width and height.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, &MalformedInputError{Reason: "document is not a JSON object", Err: err}
	}
	if members == nil {
		return nil, &MalformedInputError{Reason: "document is null"}
	}

	doc := &Document{members: members}

	if err := decodeArray(members, KeyImages, true, &doc.dataset.Images); err != nil {
		return nil, err
	}
	if err := decodeArray(members, KeyAnnotations, true, &doc.dataset.Annotations); err != nil {
		return nil, err
	}
	if err := decodeArray(members, KeyCategories, false, &doc.dataset.Categories); err != nil {
		return nil, err
	}

	return doc, nil
}

// decodeArray validates that members[key] is an array of objects and decodes
// each element into dst.
func decodeArray[T any](members map[string]json.RawMessage, key string, required bool, dst *[]T) error {
	raw, ok := members[key]
	if ok && !required && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		ok = false
	}
	if !ok {
		if required {
			return &MalformedInputError{Key: key, Reason: "required member is missing"}
		}
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return &MalformedInputError{Key: key, Reason: "must be an array of records", Err: err}
	}

	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		elemKey := fmt.Sprintf("%s[%d]", key, i)
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return &MalformedInputError{Key: elemKey, Reason: "must be an object"}
		}
		var v T
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return &MalformedInputError{Key: elemKey, Reason: "invalid record", Err: err}
		}
		out = append(out, v)
	}
	*dst = out
	return nil
}

// Load reads and decodes the document at path.
func Load(fsys afero.Fs, path string) (*Document, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Dataset returns the typed records. The slices are shared with the document;
// callers that modify them should build new slices instead.
func (d *Document) Dataset() Dataset {
	return d.dataset
}

// WithDataset returns a copy of the document whose images, annotations and
// categories are replaced by ds. The receiver is not modified.
func (d *Document) WithDataset(ds Dataset) *Document {
	members := make(map[string]json.RawMessage, len(d.members))
	for k, v := range d.members {
		members[k] = v
	}
	return &Document{members: members, dataset: ds}
}

// Encode writes the document as indented JSON with its members sorted by
// key. Members other than images, annotations and categories are written
// exactly as they were read.
func (d *Document) Encode(w io.Writer) error {
	owned := map[string]any{
		KeyImages:      nonNil(d.dataset.Images),
		KeyAnnotations: nonNil(d.dataset.Annotations),
	}
	if _, ok := d.members[KeyCategories]; ok || len(d.dataset.Categories) > 0 {
		owned[KeyCategories] = nonNil(d.dataset.Categories)
	}

	keys := make([]string, 0, len(d.members)+len(owned))
	for k := range d.members {
		if _, ok := owned[k]; !ok {
			keys = append(keys, k)
		}
	}
	for k := range owned {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		buf.WriteString("  ")
		buf.Write(name)
		buf.WriteString(": ")

		if v, ok := owned[k]; ok {
			value, err := json.MarshalIndent(v, "  ", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", k, err)
			}
			buf.Write(value)
		} else {
			buf.Write(bytes.TrimSpace(d.members[k]))
		}

		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Save encodes the document to path, creating parent directories.
func (d *Document) Save(fsys afero.Fs, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
