package coco

import (
	"fmt"
	"strings"
)

// MalformedInputError reports a document that lacks the structure the pipeline
// requires. Nothing is written once it is returned.
type MalformedInputError struct {
	Key    string // offending member, e.g. "images" or "annotations[3].bbox"
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Key != "" {
		msg += ": " + e.Key
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// FileNotFoundError reports a missing input file.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// DirectoryNotFoundError reports a path that does not exist or is not a directory.
type DirectoryNotFoundError struct {
	Path string
	Err  error
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("directory not found: %s", e.Path)
}

func (e *DirectoryNotFoundError) Unwrap() error { return e.Err }

// SchemaError reports a record whose reference cannot be resolved in a context
// that requires it, for example an annotation whose image_id names no image.
type SchemaError struct {
	Record   string // "annotation" or "image"
	RecordID ID
	Ref      string // "image" or "category"
	RefID    ID
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s %s references unknown %s %s", e.Record, e.RecordID, e.Ref, e.RefID)
}

// FileFailure names one file that could not be written and why.
type FileFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// PartialWriteError reports per-file failures from a run that otherwise
// completed. It is informational: callers decide whether to retry.
type PartialWriteError struct {
	Failures []FileFailure
}

func (e *PartialWriteError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.File)
	}
	return fmt.Sprintf("%d file(s) failed to write: %s", len(e.Failures), strings.Join(names, ", "))
}
