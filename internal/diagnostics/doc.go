// Package diagnostics computes read-only integrity checks over a dataset.
//
// Every function here is pure with respect to its inputs: nothing is removed
// or repaired. The cleaner package uses the record-level checks
// (ImagesWithoutAnnotations, AnnotationsWithoutImages, AbnormalBoxes) to decide
// what to drop; Diagnose bundles all checks into a Report for logging.
//
// Identifiers are compared by canonical string form, so an annotation whose
// image_id is "3" matches an image whose id is 3.
package diagnostics
