package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ironsheep/coco2yolo/internal/cleaner"
	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/config"
	"github.com/ironsheep/coco2yolo/internal/diagnostics"
	"github.com/ironsheep/coco2yolo/internal/imaging"
	"github.com/ironsheep/coco2yolo/internal/logging"
	"github.com/ironsheep/coco2yolo/internal/yolo"
)

// ReportFile is the run report name inside the export directory.
const ReportFile = "report.json"

// Report records one full pipeline run.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Settings   config.Settings `json:"settings"`

	Diagnostics diagnostics.Report `json:"diagnostics"`
	Cleaning    cleaner.Log        `json:"cleaning"`
	Splits      map[yolo.Split]int `json:"splits"`
	Export      *yolo.Result       `json:"export"`
}

// Pipeline binds settings, a filesystem and a logger.
type Pipeline struct {
	fsys     afero.Fs
	settings config.Settings
	log      zerolog.Logger
	dims     *imaging.DimensionCache
	now      func() time.Time
}

// New returns a pipeline over fsys.
func New(fsys afero.Fs, settings config.Settings, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		fsys:     fsys,
		settings: settings,
		log:      logging.Component(log, "pipeline"),
		dims:     imaging.NewDimensionCache(fsys),
		now:      time.Now,
	}
}

// Settings returns the settings the pipeline was built with.
func (p *Pipeline) Settings() config.Settings { return p.settings }

// Load reads the source annotation document.
func (p *Pipeline) Load() (*coco.Document, error) {
	doc, err := coco.Load(p.fsys, p.settings.AnnotationsSource)
	if err != nil {
		return nil, err
	}
	ds := doc.Dataset()
	p.log.Info().
		Str("path", p.settings.AnnotationsSource).
		Int("images", len(ds.Images)).
		Int("annotations", len(ds.Annotations)).
		Int("categories", len(ds.Categories)).
		Msg("annotations loaded")
	return doc, nil
}

// Diagnose loads the source document and reports on it.
func (p *Pipeline) Diagnose(ctx context.Context) (diagnostics.Report, error) {
	doc, err := p.Load()
	if err != nil {
		return diagnostics.Report{}, err
	}
	return p.diagnose(ctx, doc.Dataset()), nil
}

func (p *Pipeline) diagnose(ctx context.Context, ds coco.Dataset) diagnostics.Report {
	opts := diagnostics.Options{
		ImagesDir:               p.settings.ImagesDirectory,
		FewAnnotationsThreshold: p.settings.FewAnnotationsThreshold,
		Workers:                 p.settings.Workers,
	}
	if p.settings.ProbeDimensions {
		opts.Dimensions = p.dims
	}

	r := diagnostics.Diagnose(ctx, p.fsys, ds, opts)

	ev := p.log.Info().
		Strs("extensions", r.Extensions).
		Int("missing_files", r.Consistency.Missing).
		Int("unreferenced_files", r.Consistency.Unreferenced).
		Int("images_without_annotations", len(r.ImagesWithoutAnnotations)).
		Int("annotations_without_images", len(r.AnnotationsWithoutImages)).
		Int("abnormal_boxes", len(r.AbnormalBoxes)).
		Int("out_of_bounds", len(r.OutOfBounds)).
		Float64("mean_annotations_per_image", r.PerImage.Mean)
	if r.Dimensions != nil {
		ev = ev.Int("dimension_mismatches", len(r.Dimensions.Mismatches))
	}
	ev.Msg("diagnostics complete")

	if r.ExtensionsError != "" {
		p.log.Warn().Str("error", r.ExtensionsError).Msg("file extension scan failed")
	}
	if r.ConsistencyError != "" {
		p.log.Warn().Str("error", r.ConsistencyError).Msg("disk consistency check failed")
	}
	if r.DimensionsError != "" {
		p.log.Warn().Str("error", r.DimensionsError).Msg("dimension audit failed")
	}
	return r
}

// logOrphans reports every annotation referencing a missing image.
func (p *Pipeline) logOrphans(orphans []coco.Annotation) {
	if len(orphans) == 0 {
		p.log.Info().Msg("no orphan annotations")
		return
	}
	for _, a := range orphans {
		p.log.Warn().
			Stringer("annotation_id", a.ID).
			Stringer("image_id", a.ImageID).
			Msg("orphan annotation")
	}
	p.log.Warn().Int("count", len(orphans)).Msg("orphan annotations found")
}

// Clean loads the source document, cleans it and saves the result to the
// output path.
func (p *Pipeline) Clean(context.Context) (cleaner.Log, error) {
	doc, err := p.Load()
	if err != nil {
		return cleaner.Log{}, err
	}
	p.logOrphans(diagnostics.AnnotationsWithoutImages(doc.Dataset().Annotations, doc.Dataset().Images))
	_, clog, err := p.clean(doc)
	return clog, err
}

func (p *Pipeline) clean(doc *coco.Document) (coco.Dataset, cleaner.Log, error) {
	clean, clog, err := cleaner.Clean(doc.Dataset())
	if err != nil {
		return coco.Dataset{}, cleaner.Log{}, err
	}
	p.log.Info().
		Int("images_removed_no_annotations", clog.ImagesRemovedNoAnnotations).
		Int("annotations_orphan_removed", clog.AnnotationsOrphanRemoved).
		Int("annotations_bbox_corrected", clog.AnnotationsBBoxCorrected).
		Int("annotations_abnormal_removed", clog.AnnotationsAbnormalRemoved).
		Int("images_removed_after_filtering", clog.ImagesRemovedAfterFiltering).
		Msg("cleaning complete")

	if err := doc.WithDataset(clean).Save(p.fsys, p.settings.OutputPath); err != nil {
		return coco.Dataset{}, cleaner.Log{}, err
	}
	p.log.Info().Str("path", p.settings.OutputPath).Msg("cleaned annotations saved")
	return clean, clog, nil
}

// Manifest reads the dataset manifest of the export directory.
func (p *Pipeline) Manifest() (yolo.Manifest, error) {
	return yolo.ReadManifest(p.fsys, p.settings.ExportDir)
}

// LastReport reads the report of the latest run into the export directory.
func (p *Pipeline) LastReport() (*Report, error) {
	return ReadReport(p.fsys, p.settings.ExportDir)
}

// Assign splits the images of ds.
func (p *Pipeline) Assign(ds coco.Dataset) yolo.Assignment {
	s := p.settings
	a := yolo.AssignSplits(ds.ImageIDs(), s.TrainFraction, s.ValFraction, s.TestFraction, s.Seed)
	counts := a.Counts()
	p.log.Info().
		Int("train", counts[yolo.Train]).
		Int("val", counts[yolo.Val]).
		Int("test", counts[yolo.Test]).
		Int64("seed", s.Seed).
		Msg("splits assigned")
	return a
}

// Export reads the cleaned document from the output path and exports it.
// Copy failures are returned as a *coco.PartialWriteError together with the
// result.
func (p *Pipeline) Export(ctx context.Context) (*yolo.Result, error) {
	doc, err := coco.Load(p.fsys, p.settings.OutputPath)
	if err != nil {
		return nil, err
	}
	ds := doc.Dataset()
	return p.export(ctx, ds, p.Assign(ds))
}

func (p *Pipeline) export(ctx context.Context, ds coco.Dataset, a yolo.Assignment) (*yolo.Result, error) {
	log := p.log.With().Str("stage", "export").Logger()
	res, err := yolo.Export(ctx, p.fsys, ds, a, yolo.Options{
		OutputDir: p.settings.ExportDir,
		ImagesDir: p.settings.ImagesDirectory,
		Workers:   p.settings.Workers,
		Logger:    &log,
	})
	if err != nil {
		return nil, err
	}
	p.log.Info().
		Str("dir", p.settings.ExportDir).
		Int("label_files", res.LabelFiles).
		Int("annotations", res.Annotations).
		Int("copied", res.Copied).
		Int("skipped_existing", res.SkippedExisting).
		Int("failures", len(res.Failures)).
		Msg("export complete")
	return res, res.Err()
}

// Run executes every stage and writes the run report into the export
// directory. When only image copies failed, the report is still written and
// returned with a *coco.PartialWriteError.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	r := &Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
		Settings:  p.settings,
	}
	p.log.Info().Str("run_id", r.RunID).Msg("pipeline started")

	doc, err := p.Load()
	if err != nil {
		return nil, err
	}
	ds := doc.Dataset()

	r.Diagnostics = p.diagnose(ctx, ds)
	p.logOrphans(r.Diagnostics.AnnotationsWithoutImages)

	clean, clog, err := p.clean(doc)
	if err != nil {
		return nil, err
	}
	r.Cleaning = clog

	a := p.Assign(clean)
	r.Splits = a.Counts()

	res, exportErr := p.export(ctx, clean, a)
	if res == nil {
		return nil, exportErr
	}
	r.Export = res
	r.FinishedAt = p.now().UTC()

	if err := p.writeReport(r); err != nil {
		return nil, err
	}
	p.log.Info().Str("run_id", r.RunID).Dur("elapsed", r.FinishedAt.Sub(r.StartedAt)).Msg("pipeline finished")
	return r, exportErr
}

func (p *Pipeline) writeReport(r *Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	dst := filepath.Join(p.settings.ExportDir, ReportFile)
	if err := afero.WriteFile(p.fsys, dst, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// ReadReport loads the run report of an export directory.
func ReadReport(fsys afero.Fs, exportDir string) (*Report, error) {
	b, err := afero.ReadFile(fsys, filepath.Join(exportDir, ReportFile))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &r, nil
}
