package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Shared argument schemas. Every path and knob is optional and falls back to
// the server configuration.
var (
	annotationsProp = map[string]interface{}{
		"type":        "string",
		"description": "Path to the COCO annotation file. Defaults to the configured source",
	}
	imagesDirProp = map[string]interface{}{
		"type":        "string",
		"description": "Directory holding the image files. Defaults to the configured images directory",
	}
	outputProp = map[string]interface{}{
		"type":        "string",
		"description": "Path of the cleaned annotation file. Defaults to the configured output path",
	}
	exportDirProp = map[string]interface{}{
		"type":        "string",
		"description": "Root directory of the YOLO export. Defaults to the configured export directory",
	}
	trainProp = map[string]interface{}{
		"type":        "number",
		"description": "Fraction of images assigned to train, within [0, 1]",
		"minimum":     0,
		"maximum":     1,
	}
	valProp = map[string]interface{}{
		"type":        "number",
		"description": "Fraction of images assigned to val, within [0, 1]",
		"minimum":     0,
		"maximum":     1,
	}
	testProp = map[string]interface{}{
		"type":        "number",
		"description": "Fraction of images assigned to test, within [0, 1]. Images left over after train and val always go to test",
		"minimum":     0,
		"maximum":     1,
	}
	seedProp = map[string]interface{}{
		"type":        "integer",
		"description": "Shuffle seed. The same seed and image list always yield the same split",
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "dataset_diagnose",
			Description: "Inspect a COCO dataset without modifying it: file extensions, declared versus on-disk images, images without annotations, orphan annotations, abnormal and out-of-bounds boxes, and annotation-per-image statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"annotations": annotationsProp,
					"images_dir":  imagesDirProp,
					"few_annotations_threshold": map[string]interface{}{
						"type":        "integer",
						"description": "Count images with fewer annotations than this. Default from configuration",
						"minimum":     0,
					},
					"probe_dimensions": map[string]interface{}{
						"type":        "boolean",
						"description": "Decode every image header and compare its size with the declared size",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "dataset_clean",
			Description: "Clean a COCO dataset and save the result: drop unannotated images and orphan annotations, clamp boxes to their image, drop degenerate boxes and images left empty. Returns the cleaning log.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"annotations": annotationsProp,
					"output":      outputProp,
				},
			},
		},
		{
			Name:        "dataset_split",
			Description: "Assign the images of a COCO dataset to train, val and test without writing anything. Returns the counts and the image ids of each subset.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"annotations": annotationsProp,
					"train":       trainProp,
					"val":         valProp,
					"test":        testProp,
					"seed":        seedProp,
				},
			},
		},
		{
			Name:        "dataset_export",
			Description: "Export the cleaned COCO dataset to the YOLO layout: per-split image and label directories plus dataset.yaml. Existing images are kept; copy failures are listed in the result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output":     outputProp,
					"images_dir": imagesDirProp,
					"export_dir": exportDirProp,
					"train":      trainProp,
					"val":        valProp,
					"test":       testProp,
					"seed":       seedProp,
					"workers": map[string]interface{}{
						"type":        "integer",
						"description": "Concurrent image copies",
						"minimum":     1,
					},
				},
			},
		},
		{
			Name:        "dataset_manifest",
			Description: "Read back the dataset.yaml of a YOLO export: root path, per-split image and label directories, class count and class names.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"export_dir": exportDirProp,
				},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file after EXIF orientation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
