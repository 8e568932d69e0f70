package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

const testDataset = `{
  "categories": [{"id": 1, "name": "fire"}],
  "images": [
    {"id": 1, "file_name": "a.png", "width": 40, "height": 30},
    {"id": 2, "file_name": "b.png", "width": 40, "height": 30},
    {"id": 3, "file_name": "c.png", "width": 40, "height": 30}
  ],
  "annotations": [
    {"id": 10, "image_id": 1, "category_id": 1, "bbox": [0, 0, 50, 10]},
    {"id": 11, "image_id": 2, "category_id": 1, "bbox": [5, 5, 10, 10]},
    {"id": 12, "image_id": 7, "category_id": 1, "bbox": [5, 5, 10, 10]}
  ]
}`

// newDatasetFs lays out the default configured paths with three images.
func newDatasetFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "data/_annotations.coco.json", []byte(testDataset), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30))); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fsys, "data/images/"+name, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fsys
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name, "arguments": args}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	if resp.Error != nil || out == nil {
		return resp
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
		t.Fatalf("Failed to decode tool result: %v", err)
	}
	return resp
}

func TestHandleToolsCall_DatasetDiagnose(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	var report struct {
		Images                   int               `json:"images"`
		AnnotationsWithoutImages []json.RawMessage `json:"annotations_without_images"`
		OutOfBounds              []json.RawMessage `json:"out_of_bounds"`
		Extensions               []string          `json:"extensions"`
	}
	resp := callTool(t, s, "dataset_diagnose", map[string]interface{}{}, &report)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if report.Images != 3 {
		t.Errorf("images: got %d, want 3", report.Images)
	}
	if len(report.AnnotationsWithoutImages) != 1 {
		t.Errorf("orphans: got %d, want 1", len(report.AnnotationsWithoutImages))
	}
	if len(report.OutOfBounds) != 1 {
		t.Errorf("out of bounds: got %d, want 1", len(report.OutOfBounds))
	}
	if len(report.Extensions) != 1 || report.Extensions[0] != ".png" {
		t.Errorf("extensions: got %v", report.Extensions)
	}
}

func TestHandleToolsCall_DatasetDiagnose_ProbeDimensions(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	var report struct {
		Dimensions *struct {
			Checked    int               `json:"checked"`
			Mismatches []json.RawMessage `json:"mismatches"`
		} `json:"dimensions"`
	}
	callTool(t, s, "dataset_diagnose", map[string]interface{}{"probe_dimensions": true}, &report)

	if report.Dimensions == nil {
		t.Fatal("dimension audit missing")
	}
	if report.Dimensions.Checked != 3 || len(report.Dimensions.Mismatches) != 0 {
		t.Errorf("audit: got %+v", *report.Dimensions)
	}
}

func TestHandleToolsCall_DatasetClean(t *testing.T) {
	fsys := newDatasetFs(t)
	s := newTestServer(fsys)

	var res cleanResult
	resp := callTool(t, s, "dataset_clean", map[string]interface{}{"output": "out/clean.json"}, &res)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if !res.Changed {
		t.Error("expected changes")
	}
	if res.Log.ImagesRemovedNoAnnotations != 1 || res.Log.AnnotationsOrphanRemoved != 1 || res.Log.AnnotationsBBoxCorrected != 1 {
		t.Errorf("log: got %+v", res.Log)
	}
	if ok, _ := afero.Exists(fsys, "out/clean.json"); !ok {
		t.Error("cleaned document not written")
	}
}

func TestHandleToolsCall_DatasetSplit(t *testing.T) {
	s := newTestServer(newDatasetFs(t))
	args := map[string]interface{}{"train": 0.34, "val": 0.34, "test": 0.32, "seed": 7}

	var first, second splitResult
	callTool(t, s, "dataset_split", args, &first)
	callTool(t, s, "dataset_split", args, &second)

	total := 0
	for _, n := range first.Counts {
		total += n
	}
	if total != 3 {
		t.Errorf("assigned: got %d, want 3", total)
	}
	if first.Seed != 7 {
		t.Errorf("seed: got %d, want 7", first.Seed)
	}
	for split, members := range first.Members {
		if len(members) != len(second.Members[split]) {
			t.Fatalf("split %s not reproducible", split)
		}
		for i := range members {
			if members[i] != second.Members[split][i] {
				t.Errorf("split %s not reproducible: %v vs %v", split, members, second.Members[split])
			}
		}
	}
}

func TestHandleToolsCall_DatasetSplit_InvalidFraction(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	resp := callTool(t, s, "dataset_split", map[string]interface{}{"train": 2}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error for train fraction above one")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_DatasetExport(t *testing.T) {
	fsys := newDatasetFs(t)
	s := newTestServer(fsys)

	callTool(t, s, "dataset_clean", map[string]interface{}{}, &cleanResult{})

	var res struct {
		LabelFiles int `json:"label_files"`
		Copied     int `json:"copied"`
		Failures   []struct {
			File string `json:"file"`
		} `json:"failures"`
	}
	resp := callTool(t, s, "dataset_export", map[string]interface{}{"export_dir": "yolo", "workers": 2}, &res)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if res.LabelFiles != 2 || res.Copied != 2 || len(res.Failures) != 0 {
		t.Errorf("result: got %+v", res)
	}
	if ok, _ := afero.Exists(fsys, "yolo/dataset.yaml"); !ok {
		t.Error("manifest not written")
	}
}

func TestHandleToolsCall_DatasetExport_CopyFailureIsReported(t *testing.T) {
	fsys := newDatasetFs(t)
	s := newTestServer(fsys)
	callTool(t, s, "dataset_clean", map[string]interface{}{}, &cleanResult{})
	if err := fsys.Remove("data/images/a.png"); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Failures []struct {
			File string `json:"file"`
		} `json:"failures"`
	}
	resp := callTool(t, s, "dataset_export", map[string]interface{}{}, &res)
	if resp.Error != nil {
		t.Fatalf("copy failures must not fail the tool: %v", resp.Error)
	}
	if len(res.Failures) != 1 || res.Failures[0].File != "a.png" {
		t.Errorf("failures: got %+v", res.Failures)
	}
}

func TestHandleToolsCall_DatasetExport_NotCleaned(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	resp := callTool(t, s, "dataset_export", map[string]interface{}{}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error when the cleaned document is missing")
	}
}

func TestHandleToolsCall_DatasetManifest(t *testing.T) {
	fsys := newDatasetFs(t)
	s := newTestServer(fsys)
	callTool(t, s, "dataset_clean", map[string]interface{}{}, &cleanResult{})
	callTool(t, s, "dataset_export", map[string]interface{}{"export_dir": "yolo"}, &map[string]interface{}{})

	var m struct {
		Path  string   `json:"path"`
		Train string   `json:"train"`
		NC    int      `json:"nc"`
		Names []string `json:"names"`
	}
	resp := callTool(t, s, "dataset_manifest", map[string]interface{}{"export_dir": "yolo"}, &m)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if m.Path != "yolo" || m.Train != "train/images" || m.NC != 1 || len(m.Names) != 1 || m.Names[0] != "fire" {
		t.Errorf("manifest: got %+v", m)
	}
}

func TestHandleToolsCall_DatasetManifest_NotExported(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	resp := callTool(t, s, "dataset_manifest", map[string]interface{}{"export_dir": "nowhere"}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error when no export exists")
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(newDatasetFs(t))

	var dims struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": "data/images/a.png"}, &dims)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if dims.Width != 40 || dims.Height != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(afero.NewMemMapFs())

	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": "/nonexistent/image.png"}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_MissingSource(t *testing.T) {
	s := newTestServer(afero.NewMemMapFs())

	resp := callTool(t, s, "dataset_diagnose", map[string]interface{}{}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error for missing annotation file")
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(afero.NewMemMapFs())

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{}, nil)
	if resp.Error == nil {
		t.Fatal("Expected error for invalid tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(afero.NewMemMapFs())

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid json}`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(afero.NewMemMapFs())

	for _, name := range []string{"dataset_diagnose", "image_dimensions"} {
		if _, err := s.executeTool(context.Background(), name, json.RawMessage(`{invalid}`)); err == nil {
			t.Errorf("%s: expected error for invalid JSON", name)
		}
	}
}
