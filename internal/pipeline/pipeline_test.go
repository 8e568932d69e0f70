package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/config"
	"github.com/ironsheep/coco2yolo/internal/yolo"
)

const source = `{
  "info": {"description": "fire"},
  "categories": [{"id": 1, "name": "fire"}, {"id": 2, "name": "smoke"}],
  "images": [
    {"id": 1, "file_name": "a.jpg", "width": 100, "height": 100},
    {"id": 2, "file_name": "b.jpg", "width": 100, "height": 100},
    {"id": 3, "file_name": "c.jpg", "width": 50, "height": 50},
    {"id": 4, "file_name": "d.jpg", "width": 200, "height": 100}
  ],
  "annotations": [
    {"id": 10, "image_id": 1, "category_id": 1, "bbox": [10, 10, 20, 20]},
    {"id": 11, "image_id": 1, "category_id": 2, "bbox": [90, 90, 20, 20]},
    {"id": 12, "image_id": 9, "category_id": 1, "bbox": [0, 0, 5, 5]},
    {"id": 13, "image_id": 3, "category_id": 1, "bbox": [5, 5, 0, 5]},
    {"id": 14, "image_id": 4, "category_id": 2, "bbox": [0, 0, 200, 100]}
  ]
}`

func fixture(t *testing.T) (afero.Fs, config.Settings) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "data/_annotations.coco.json", []byte(source), 0o644))
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "stray.jpg"} {
		require.NoError(t, afero.WriteFile(fsys, filepath.Join("data/images", name), []byte(name), 0o644))
	}
	return fsys, config.Defaults()
}

func TestRun(t *testing.T) {
	fsys, settings := fixture(t)
	var logs bytes.Buffer
	p := New(fsys, settings, zerolog.New(&logs))

	r, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, r.RunID)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))

	assert.Equal(t, 4, r.Diagnostics.Images)
	assert.Equal(t, 1, r.Diagnostics.Consistency.Unreferenced)
	assert.Len(t, r.Diagnostics.AnnotationsWithoutImages, 1)
	assert.Len(t, r.Diagnostics.PerImageCounts, 3)

	assert.Equal(t, 1, r.Cleaning.ImagesRemovedNoAnnotations)
	assert.Equal(t, 1, r.Cleaning.AnnotationsOrphanRemoved)
	assert.Equal(t, 1, r.Cleaning.AnnotationsBBoxCorrected)
	assert.Equal(t, 1, r.Cleaning.AnnotationsAbnormalRemoved)
	assert.Equal(t, 1, r.Cleaning.ImagesRemovedAfterFiltering)

	// Images 1 and 4 survive: floor(2*0.7)=1 train, floor(2*0.2)=0 val, 1 test.
	assert.Equal(t, map[yolo.Split]int{yolo.Train: 1, yolo.Val: 0, yolo.Test: 1}, r.Splits)
	assert.Equal(t, 2, r.Export.LabelFiles)
	assert.Equal(t, 3, r.Export.Annotations)
	assert.Equal(t, 2, r.Export.Copied)

	cleaned, err := coco.Load(fsys, settings.OutputPath)
	require.NoError(t, err)
	assert.Len(t, cleaned.Dataset().Images, 2)
	assert.Len(t, cleaned.Dataset().Annotations, 3)

	saved, err := p.LastReport()
	require.NoError(t, err)
	assert.Equal(t, r.RunID, saved.RunID)
	assert.Equal(t, r.Cleaning, saved.Cleaning)
	assert.Equal(t, r.Splits, saved.Splits)

	assert.Contains(t, logs.String(), "orphan annotation")
	assert.Contains(t, logs.String(), `"component":"pipeline"`)
}

func TestRun_Reproducible(t *testing.T) {
	labels := func() map[string]string {
		fsys, settings := fixture(t)
		_, err := New(fsys, settings, zerolog.Nop()).Run(context.Background())
		require.NoError(t, err)

		out := map[string]string{}
		for _, s := range yolo.Splits {
			dir := filepath.Join(settings.ExportDir, string(s), "labels")
			files, err := afero.ReadDir(fsys, dir)
			require.NoError(t, err)
			for _, f := range files {
				b, err := afero.ReadFile(fsys, filepath.Join(dir, f.Name()))
				require.NoError(t, err)
				out[filepath.Join(string(s), f.Name())] = string(b)
			}
		}
		return out
	}

	first := labels()
	assert.Len(t, first, 2)
	assert.Equal(t, first, labels())
}

func TestRun_MissingSource(t *testing.T) {
	settings := config.Defaults()
	_, err := New(afero.NewMemMapFs(), settings, zerolog.Nop()).Run(context.Background())

	var notFound *coco.FileNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, settings.AnnotationsSource, notFound.Path)
}

func TestRun_PartialCopy(t *testing.T) {
	fsys, settings := fixture(t)
	require.NoError(t, fsys.Remove("data/images/a.jpg"))

	r, err := New(fsys, settings, zerolog.Nop()).Run(context.Background())

	var partial *coco.PartialWriteError
	require.True(t, errors.As(err, &partial))
	require.NotNil(t, r)
	require.Len(t, r.Export.Failures, 1)
	assert.Equal(t, "a.jpg", r.Export.Failures[0].File)

	exists, err := afero.Exists(fsys, filepath.Join(settings.ExportDir, ReportFile))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDiagnose(t *testing.T) {
	fsys, settings := fixture(t)
	r, err := New(fsys, settings, zerolog.Nop()).Diagnose(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{".jpg"}, r.Extensions)
	assert.Equal(t, 4, r.Consistency.Declared)
	assert.Equal(t, 5, r.Consistency.Actual)
	assert.Len(t, r.AbnormalBoxes, 1)
	assert.Len(t, r.OutOfBounds, 1)

	exists, err := afero.Exists(fsys, settings.OutputPath)
	require.NoError(t, err)
	assert.False(t, exists, "diagnose writes nothing")
}

func TestCleanThenExport(t *testing.T) {
	fsys, settings := fixture(t)
	p := New(fsys, settings, zerolog.Nop())

	clog, err := p.Clean(context.Background())
	require.NoError(t, err)
	assert.True(t, clog.Changed())

	res, err := p.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.LabelFiles)

	m, err := p.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"fire", "smoke"}, m.Names)
}

func TestLastReport_NoRun(t *testing.T) {
	fsys, settings := fixture(t)
	_, err := New(fsys, settings, zerolog.Nop()).LastReport()
	assert.Error(t, err)
}

func TestExport_RequiresCleanedDocument(t *testing.T) {
	fsys, settings := fixture(t)
	_, err := New(fsys, settings, zerolog.Nop()).Export(context.Background())

	var notFound *coco.FileNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRun_Clock(t *testing.T) {
	fsys, settings := fixture(t)
	p := New(fsys, settings, zerolog.Nop())
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Second)
	}

	r, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, r.StartedAt)
	assert.Equal(t, start.Add(time.Second), r.FinishedAt)
}
