// Package pipeline runs the dataset stages end to end: load the COCO
// document, diagnose it, clean it, save the cleaned document, assign splits,
// export the YOLO layout and record a run report.
//
// Every stage is also available on its own (Diagnose, Clean, Export) so the
// CLI and the MCP server can drive them individually. All file access goes
// through an afero.Fs; loggers are passed in explicitly.
package pipeline
