package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"capaudit/internal/approval"
	"capaudit/internal/audit"
	"capaudit/internal/captable"
	"capaudit/internal/classifier"
	"capaudit/internal/config"
	"capaudit/internal/extractor"
	"capaudit/internal/extractor/preview"
	"capaudit/internal/issues"
	"capaudit/internal/logging"
	"capaudit/internal/quality"
	"capaudit/internal/services/claude"
	"capaudit/internal/timeline"
	"capaudit/internal/transaction"
)

// Parser converts an uploaded file into text. The production implementation
// re-executes the binary so a crashing document cannot take the pipeline
// down with it.
type Parser interface {
	Parse(ctx context.Context, path string) audit.ParseResult
}

// Store is the persistence surface the orchestrator writes through.
// *store.Store satisfies it.
type Store interface {
	UpdateProgress(ctx context.Context, id string, state audit.State, progress string) error
	InsertDocuments(ctx context.Context, auditID string, docs []audit.Document) error
	InsertEquityEvents(ctx context.Context, auditID string, events []audit.EquityEvent) error
	UpdateResults(ctx context.Context, id string, results *audit.Results, report *audit.QualityReport, state audit.State) error
	MarkError(ctx context.Context, id, message string) error
}

// Orchestrator drives one audit through every stage.
type Orchestrator struct {
	cfg        *config.Config
	store      Store
	parser     Parser
	classifier *classifier.Classifier
	extractor  *extractor.Extractor
	matcher    *approval.Matcher
	timeline   *timeline.Synthesizer
	detector   *issues.Detector
	logger     *slog.Logger
}

// New wires an orchestrator from configuration. The completer is shared by
// every model-facing stage.
func New(cfg *config.Config, st Store, parser Parser, completer claude.Completer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "pipeline")
	previews := preview.NewGenerator(logger)
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		parser:     parser,
		classifier: classifier.New(completer, cfg.Pipeline.ClassifySampleChars, logger),
		extractor:  extractor.New(completer, previews, logger),
		matcher:    approval.New(completer, logger),
		timeline:   timeline.New(completer, logger),
		detector:   issues.New(completer, logger),
		logger:     componentLogger,
	}
}

// ProcessAudit runs the full pipeline for the given uploaded files. The
// returned error marks pipeline-level failure; per-document problems are
// recorded on the audit instead.
func (o *Orchestrator) ProcessAudit(ctx context.Context, auditID string, paths []string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.Pipeline.PipelineTimeoutSeconds)*time.Second)
	defer cancel()

	logger := o.logger.With(logging.String(logging.FieldAuditID, auditID))
	logger.Info("audit started", logging.Int("files", len(paths)))

	run := func() error {
		docs := o.parseStage(ctx, auditID, paths, logger)
		if err := o.checkDeadline(ctx); err != nil {
			return err
		}

		o.classifyStage(ctx, auditID, docs, logger)
		if err := o.checkDeadline(ctx); err != nil {
			return err
		}

		o.extractStage(ctx, auditID, docs, logger)
		if err := o.checkDeadline(ctx); err != nil {
			return err
		}

		for i := range docs {
			envelope := audit.BuildEnvelope(&docs[i])
			docs[i].ExtractedData = &envelope
		}
		if err := o.store.InsertDocuments(ctx, auditID, docs); err != nil {
			return fmt.Errorf("persist documents: %w", err)
		}

		o.progress(ctx, auditID, audit.StateReconciling, "Reconciling equity events")
		events, transactionIssues := transaction.Build(docs)
		o.matcher.Match(ctx, events, docs)
		if err := o.checkDeadline(ctx); err != nil {
			return err
		}

		capTable, capIssues := captable.Synthesize(docs)
		timelineEvents := o.timeline.Synthesize(ctx, docs)
		companyName := o.timeline.CompanyName(ctx, docs, o.extractor)
		if err := o.checkDeadline(ctx); err != nil {
			return err
		}

		allIssues := o.detector.Generate(ctx, docs, capTable, timelineEvents)
		allIssues = append(allIssues, transactionIssues...)
		allIssues = append(allIssues, capIssues...)

		report := quality.BuildReport(docs, events, allIssues)

		results := &audit.Results{
			CompanyName:     companyName,
			Documents:       docs,
			Timeline:        timelineEvents,
			CapTable:        capTable,
			Issues:          allIssues,
			FailedDocuments: failedDocuments(docs),
		}

		if err := o.store.InsertEquityEvents(ctx, auditID, events); err != nil {
			return fmt.Errorf("persist equity events: %w", err)
		}

		state := audit.StateComplete
		if report.ReviewRequired {
			state = audit.StateNeedsReview
		}
		if err := o.store.UpdateResults(ctx, auditID, results, &report, state); err != nil {
			return fmt.Errorf("persist results: %w", err)
		}

		logger.Info("audit finished",
			logging.String("state", string(state)),
			logging.Int("documents", len(docs)),
			logging.Int("events", len(events)),
			logging.Int("issues", len(allIssues)))
		return nil
	}

	if err := run(); err != nil {
		logger.Error("audit failed", logging.Error(err))
		if markErr := o.store.MarkError(context.WithoutCancel(ctx), auditID, err.Error()); markErr != nil {
			logger.Error("marking audit failed", logging.Error(markErr))
		}
		return err
	}
	return nil
}

// parseStage parses files one at a time; each parse runs in its own child
// process under the parse timeout. Parse failures produce a degraded document
// rather than dropping the file.
func (o *Orchestrator) parseStage(ctx context.Context, auditID string, paths []string, logger *slog.Logger) []audit.Document {
	o.progress(ctx, auditID, audit.StateParsing, fmt.Sprintf("Parsing %d documents", len(paths)))

	docs := make([]audit.Document, len(paths))
	for i, path := range paths {
		result := o.parser.Parse(ctx, path)
		doc := audit.Document{
			Filename:    filepath.Base(path),
			Type:        filepath.Ext(path),
			PDFPath:     path,
			Text:        audit.CleanText(result.Text),
			ParseStatus: result.ParseStatus,
			ParseError:  result.ParseError,
			TextSpans:   result.TextSpans,
			Extraction:  map[string]any{},
		}
		if doc.ParseStatus == "" {
			doc.ParseStatus = audit.ParseError
			doc.ParseError = "parser returned no status"
		}
		docs[i] = doc
	}

	failures := 0
	for i := range docs {
		if docs[i].ParseStatus == audit.ParseError {
			failures++
		}
	}
	logger.Info("parse stage complete",
		logging.Int("documents", len(docs)),
		logging.Int("failures", failures))
	return docs
}

func (o *Orchestrator) classifyStage(ctx context.Context, auditID string, docs []audit.Document, logger *slog.Logger) {
	o.progress(ctx, auditID, audit.StateClassifying, "Classifying documents")

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Pipeline.MaxWorkers)
	for i := range docs {
		group.Go(func() error {
			o.classifier.Classify(groupCtx, &docs[i])
			return nil
		})
	}
	_ = group.Wait()
	logger.Info("classify stage complete", logging.Int("documents", len(docs)))
}

func (o *Orchestrator) extractStage(ctx context.Context, auditID string, docs []audit.Document, logger *slog.Logger) {
	o.progress(ctx, auditID, audit.StateExtracting, "Extracting structured data")

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Pipeline.MaxWorkers)
	for i := range docs {
		group.Go(func() error {
			doc := &docs[i]
			if doc.ParseStatus == audit.ParseError {
				return nil
			}
			o.extractor.Extract(groupCtx, doc)
			return nil
		})
	}
	_ = group.Wait()
	logger.Info("extract stage complete", logging.Int("documents", len(docs)))
}

// progress writes are advisory: a failed update never stops the pipeline.
func (o *Orchestrator) progress(ctx context.Context, auditID string, state audit.State, message string) {
	if err := o.store.UpdateProgress(ctx, auditID, state, message); err != nil {
		o.logger.Warn("progress update failed",
			logging.String(logging.FieldAuditID, auditID),
			logging.Error(err))
	}
}

func (o *Orchestrator) checkDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline timed out: %w", err)
	}
	return nil
}

func failedDocuments(docs []audit.Document) []audit.Document {
	var failed []audit.Document
	for _, doc := range docs {
		if doc.ParseStatus == audit.ParseError {
			failed = append(failed, doc)
		}
	}
	return failed
}
