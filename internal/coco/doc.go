// Package coco reads and writes COCO-style object-detection annotation documents.
//
// A document is a JSON object whose "images", "annotations" and (optionally)
// "categories" members are arrays of records. This package translates those
// arrays into typed slices and merges updated slices back into the original
// object, leaving every member it does not own untouched.
//
// # Identifiers
//
// COCO exports in the wild use both numeric and string identifiers, sometimes
// mixed within one document. The ID type keeps the original representation for
// output but compares by canonical string form, so 1, 1.0 and "1" all name the
// same record. Use ID.String as the map key when building indexes.
//
// # Record Fields
//
// Image, Annotation and Category decode the fields the pipeline works with and
// keep everything else (area, iscrowd, segmentation, license, ...) in Extra.
// Extra fields are written back verbatim.
//
// # Errors
//
// The package defines the error taxonomy shared by the whole pipeline:
//   - MalformedInputError: the document is missing required structure
//   - FileNotFoundError, DirectoryNotFoundError: a declared path does not exist
//   - SchemaError: a record references an id that cannot be resolved
//   - PartialWriteError: some per-file writes failed during export
//
// All are pointer types intended for errors.As.
package coco
