// Package pipeline runs batches of loaded documents through detection,
// mapping and validation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dteintake/internal/detect"
	"dteintake/internal/docpath"
	"dteintake/internal/invoice"
	"dteintake/internal/logger"
	"dteintake/internal/mapper"
	"dteintake/pkg/models"
)

// DefaultWorkers bounds the parallel detect and map stage.
const DefaultWorkers = 4

// FileResult is the outcome for one input file.
type FileResult struct {
	Source     string                   `json:"source_file"`
	Detection  models.DetectionResult   `json:"detection"`
	Mapper     string                   `json:"mapper,omitempty"`
	Invoice    *models.Invoice          `json:"invoice,omitempty"`
	Validation *models.ValidationResult `json:"validation,omitempty"`
	Accepted   bool                     `json:"accepted"`
	Err        error                    `json:"-"`
}

// Reason is the short rejection reason, empty for accepted files.
func (r FileResult) Reason() string {
	switch {
	case r.Accepted:
		return ""
	case r.Err != nil:
		return r.Err.Error()
	case r.Validation != nil:
		return r.Validation.Reason()
	}
	return "not processed"
}

type Rejection struct {
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
}

// BatchResult is everything a report or export layer needs.
type BatchResult struct {
	BatchID      string                `json:"batch_id"`
	Accepted     []*models.Invoice     `json:"accepted"`
	Rejected     []Rejection           `json:"rejected"`
	FormatCounts map[models.Format]int `json:"format_counts"`
	Results      []FileResult          `json:"-"`
}

// Progress is called once per file, in input order, after the file has been
// accepted or rejected.
type Progress func(done, total int, r FileResult)

type Option func(*Processor)

// WithWorkers sets how many files are detected and mapped in parallel.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDropRawData releases each invoice's raw document once it is processed.
func WithDropRawData(drop bool) Option {
	return func(p *Processor) { p.dropRaw = drop }
}

// Processor wires a detector, a mapper registry and a validator.
type Processor struct {
	detector  *detect.Detector
	registry  *mapper.Registry
	validator invoice.InvoiceValidator
	workers   int
	dropRaw   bool
	log       zerolog.Logger
}

func NewProcessor(d *detect.Detector, r *mapper.Registry, v invoice.InvoiceValidator, opts ...Option) *Processor {
	p := &Processor{
		detector:  d,
		registry:  r,
		validator: v,
		workers:   DefaultWorkers,
		log:       logger.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch detects and maps documents in parallel, then validates them
// in input order so each invoice is checked against the ones accepted
// before it. On cancellation the partial result is returned with ctx.Err().
func (p *Processor) ProcessBatch(ctx context.Context, docs []Document, progress Progress) (*BatchResult, error) {
	result := &BatchResult{
		BatchID:      uuid.NewString(),
		Accepted:     []*models.Invoice{},
		Rejected:     []Rejection{},
		FormatCounts: make(map[models.Format]int),
		Results:      make([]FileResult, 0, len(docs)),
	}
	log := p.log.With().Str("batch_id", result.BatchID).Logger()
	log.Info().Int("files", len(docs)).Int("workers", p.workers).Msg("Starting batch")

	staged := make([]*FileResult, len(docs))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			staged[i] = p.stage(docs[i], log)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range staged {
		if err := ctx.Err(); err != nil || r == nil {
			if err == nil {
				err = context.Canceled
			}
			log.Warn().Err(err).Int("processed", i).Int("files", len(docs)).Msg("Batch cancelled")
			return result, err
		}
		p.fold(result, *r, log)
		p.notify(progress, i+1, len(docs), result.Results[i], log)
	}

	log.Info().
		Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).
		Interface("formats", result.FormatCounts).
		Msg("Batch completed")

	return result, nil
}

// stage runs the parts of the pipeline that do not depend on other files.
func (p *Processor) stage(doc Document, log zerolog.Logger) *FileResult {
	log = logger.WithFile(log, doc.Source)
	// Files that never load are counted as UNKNOWN.
	r := &FileResult{Source: doc.Source, Detection: models.Unknown()}

	if doc.Err != nil {
		log.Warn().Err(doc.Err).Msg("Document failed to load")
		r.Err = doc.Err
		return r
	}

	r.Detection = p.detector.Detect(doc.Data)

	m, err := p.registry.GetMapper(r.Detection.Format)
	if err != nil {
		log.Warn().Err(err).Str("format", string(r.Detection.Format)).Msg("No mapper available")
		r.Err = err
		return r
	}
	r.Mapper = m.Name()

	raw, ok := doc.Data.(map[string]any)
	if !ok {
		r.Err = mapper.NewMappingError(doc.Source, m.Name(),
			fmt.Errorf("%w: top-level value is %s, not an object", mapper.ErrInvalidDocument, docpath.Kind(doc.Data)), nil)
		log.Warn().Err(r.Err).Msg("Document is not an object")
		return r
	}

	inv, err := m.Map(raw, doc.Source)
	if err != nil {
		log.Warn().Err(err).Str("mapper", m.Name()).Msg("Mapping failed")
		r.Err = err
		return r
	}
	inv.Metadata.DetectedFormat = r.Detection.Format
	inv.Metadata.DetectionConfidence = r.Detection.Confidence
	r.Invoice = inv

	log.Debug().
		Str("format", string(r.Detection.Format)).
		Float64("confidence", r.Detection.Confidence).
		Str("mapper", m.Name()).
		Msg("Document mapped")
	return r
}

// fold validates r against the invoices accepted so far and records it.
func (p *Processor) fold(result *BatchResult, r FileResult, log zerolog.Logger) {
	if r.Err == nil {
		r.Validation = p.validator.Validate(r.Invoice, result.Accepted)
		r.Accepted = r.Validation.IsValid
	}

	result.FormatCounts[r.Detection.Format]++

	if r.Accepted {
		result.Accepted = append(result.Accepted, r.Invoice)
	} else {
		result.Rejected = append(result.Rejected, Rejection{SourceFile: r.Source, Reason: r.Reason()})
		log.Info().Str("file", r.Source).Str("reason", r.Reason()).Msg("Document rejected")
	}

	if p.dropRaw && r.Invoice != nil {
		r.Invoice.DropRawData()
	}
	result.Results = append(result.Results, r)
}

// notify calls progress and keeps a panicking callback from failing the batch.
func (p *Processor) notify(progress Progress, done, total int, r FileResult, log zerolog.Logger) {
	if progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("file", r.Source).Msg("Progress callback panicked")
		}
	}()
	progress(done, total, r)
}
