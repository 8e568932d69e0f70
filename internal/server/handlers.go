package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ironsheep/coco2yolo/internal/cleaner"
	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/pipeline"
	"github.com/ironsheep/coco2yolo/internal/yolo"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "dataset_diagnose").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, codeToolFailure, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "dataset_diagnose":
		return s.handleDatasetDiagnose(ctx, args)
	case "dataset_clean":
		return s.handleDatasetClean(ctx, args)
	case "dataset_split":
		return s.handleDatasetSplit(args)
	case "dataset_export":
		return s.handleDatasetExport(ctx, args)
	case "dataset_manifest":
		return s.handleDatasetManifest(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// datasetArgs overrides the server settings for one call. Nil fields keep
// the configured value.
type datasetArgs struct {
	Annotations             *string  `json:"annotations"`
	ImagesDir               *string  `json:"images_dir"`
	Output                  *string  `json:"output"`
	ExportDir               *string  `json:"export_dir"`
	Train                   *float64 `json:"train"`
	Val                     *float64 `json:"val"`
	Test                    *float64 `json:"test"`
	Seed                    *int64   `json:"seed"`
	Workers                 *int     `json:"workers"`
	FewAnnotationsThreshold *int     `json:"few_annotations_threshold"`
	ProbeDimensions         *bool    `json:"probe_dimensions"`
}

// pipeline decodes args, applies them over the server settings and returns
// a pipeline bound to the result.
func (s *Server) pipeline(args json.RawMessage) (*pipeline.Pipeline, error) {
	var a datasetArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}

	settings := s.settings
	set(&settings.AnnotationsSource, a.Annotations)
	set(&settings.ImagesDirectory, a.ImagesDir)
	set(&settings.OutputPath, a.Output)
	set(&settings.ExportDir, a.ExportDir)
	set(&settings.TrainFraction, a.Train)
	set(&settings.ValFraction, a.Val)
	set(&settings.TestFraction, a.Test)
	set(&settings.Seed, a.Seed)
	set(&settings.Workers, a.Workers)
	set(&settings.FewAnnotationsThreshold, a.FewAnnotationsThreshold)
	set(&settings.ProbeDimensions, a.ProbeDimensions)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return pipeline.New(s.fsys, settings, s.log), nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// === Dataset Handlers ===

func (s *Server) handleDatasetDiagnose(ctx context.Context, args json.RawMessage) (interface{}, error) {
	p, err := s.pipeline(args)
	if err != nil {
		return nil, err
	}
	return p.Diagnose(ctx)
}

type cleanResult struct {
	Output  string      `json:"output"`
	Changed bool        `json:"changed"`
	Log     cleaner.Log `json:"log"`
}

func (s *Server) handleDatasetClean(ctx context.Context, args json.RawMessage) (interface{}, error) {
	p, err := s.pipeline(args)
	if err != nil {
		return nil, err
	}
	clog, err := p.Clean(ctx)
	if err != nil {
		return nil, err
	}
	return cleanResult{Output: p.Settings().OutputPath, Changed: clog.Changed(), Log: clog}, nil
}

type splitResult struct {
	Seed    int64                   `json:"seed"`
	Counts  map[yolo.Split]int      `json:"counts"`
	Members map[yolo.Split][]string `json:"members"`
}

func (s *Server) handleDatasetSplit(args json.RawMessage) (interface{}, error) {
	p, err := s.pipeline(args)
	if err != nil {
		return nil, err
	}
	doc, err := p.Load()
	if err != nil {
		return nil, err
	}

	a := p.Assign(doc.Dataset())
	res := splitResult{
		Seed:    p.Settings().Seed,
		Counts:  a.Counts(),
		Members: make(map[yolo.Split][]string, len(yolo.Splits)),
	}
	for _, split := range yolo.Splits {
		members := a.Members(split)
		if members == nil {
			members = []string{}
		}
		res.Members[split] = members
	}
	return res, nil
}

// handleDatasetExport reports copy failures inside the result rather than as
// a tool failure.
func (s *Server) handleDatasetExport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	p, err := s.pipeline(args)
	if err != nil {
		return nil, err
	}
	res, err := p.Export(ctx)
	var partial *coco.PartialWriteError
	if err != nil && !errors.As(err, &partial) {
		return nil, err
	}
	return res, nil
}

func (s *Server) handleDatasetManifest(args json.RawMessage) (interface{}, error) {
	p, err := s.pipeline(args)
	if err != nil {
		return nil, err
	}
	return p.Manifest()
}

// === Image Handlers ===

type imageDimensionsArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageDimensionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return s.dims.Get(a.Path)
}
