// Package yolo partitions a clean dataset into train/val/test subsets and
// writes it in the YOLO detection layout:
//
//	{out}/dataset.yaml
//	{out}/{split}/images/{file_name}
//	{out}/{split}/labels/{stem}.txt
//
// Each label line is "{class} {x_center} {y_center} {width} {height}" with
// coordinates normalized by the image size and printed with six decimals.
// Class indexes are category positions in declaration order.
//
// # Determinism
//
// AssignSplits is a pure function of its inputs and seed. Export writes each
// label file whole from an in-memory buffer, so running it twice produces
// identical files; image copies skip destinations that already exist.
//
// # Partial Failures
//
// Image copy failures are collected per file in Result.Failures and never
// abort the export. Result.Err converts them into a *coco.PartialWriteError.
package yolo
