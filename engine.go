// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// Document is the host-document surface the engine works against.
// Page indexes are 1-based.
type Document interface {
	DocumentSink
	NumPages() int
	// PageContent returns the page's decoded content stream bytes.
	PageContent(ctx context.Context, page int) ([]byte, error)
	// PageSize returns the page box in points.
	PageSize(page int) (width, height float64)
	// Fonts lists the fonts available on the page.
	Fonts(page int) []FontInfo
	// Metrics resolves width metrics for a font name; nil means the
	// engine falls back to built-in approximations.
	Metrics(font string) FontMetrics
}

// PageSpansStrategy defines how to parse a single page's spans.
// Different strategies handle errors differently (strict vs. best-effort).
type PageSpansStrategy interface {
	PageSpans(ctx context.Context, doc Document, page int) ([]Span, error)
}

// StrictParser enforces strict parsing.
// If any page reports diagnostics, the whole extraction fails.
type StrictParser struct{}

func (s *StrictParser) PageSpans(ctx context.Context, doc Document, page int) ([]Span, error) {
	content, err := doc.PageContent(ctx, page)
	if err != nil {
		return nil, err
	}
	res := ParseContent(content, ParseOptions{Metrics: doc.Metrics})
	if len(res.Diagnostics) > 0 {
		return nil, fmt.Errorf("page %d: %d content diagnostics, first: %s",
			page, len(res.Diagnostics), res.Diagnostics[0])
	}
	return res.Spans, nil
}

// BestEffortParser tolerates malformed content.
// Diagnostics are logged and whatever parsed is kept.
type BestEffortParser struct{}

func (b *BestEffortParser) PageSpans(ctx context.Context, doc Document, page int) ([]Span, error) {
	content, err := doc.PageContent(ctx, page)
	if err != nil {
		logger.Debug("BestEffortParser: failed to read page content, ignoring error", "page", page, "err", err, true)
		return nil, nil
	}
	res := ParseContent(content, ParseOptions{Metrics: doc.Metrics})
	for _, d := range res.Diagnostics {
		logger.Debug("BestEffortParser: content diagnostic", "page", page, "diag", d.String(), true)
	}
	return res.Spans, nil
}

var ErrValidationFailed = errors.New("pre-save validation failed")

// ReplaceOptions tune one ReplaceText call. Zero values use the
// engine defaults; an empty Strategy asks the rewriter to recommend
// one per match.
type ReplaceOptions struct {
	Strategy OverlayStrategy
	Mode     PositionMode
	Fit      FitStrategy
	Level    LayerLevel
	// Font renders the replacement in a different font; empty keeps
	// the matched span's font.
	Font  string
	Color [3]float64
	// HasSignatures marks documents carrying digital signatures so a
	// recommended strategy never disturbs the existing marks.
	HasSignatures bool
	// Apply draws the overlays immediately instead of leaving them
	// planned.
	Apply bool
}

// Engine wires the parser, fitter, rewriter, stacking manager and
// validator into one replacement pipeline.
type Engine struct {
	cfg       *Config
	sem       *semaphore.Weighted
	parser    PageSpansStrategy
	rewriter  *Rewriter
	zorder    *Manager
	validator *Validator

	mu   sync.Mutex
	mods []ModificationInfo
}

// NewEngine validates the config and creates a new engine.
// Selects the correct PageSpansStrategy (Strict or BestEffort).
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	var parser PageSpansStrategy
	switch cfg.ParsingMode {
	case Strict:
		parser = &StrictParser{}
	default:
		parser = &BestEffortParser{}
	}

	rw, err := NewRewriter(cfg.Rewrite)
	if err != nil {
		return nil, err
	}
	zm, err := NewManager(cfg.ZOrder)
	if err != nil {
		return nil, err
	}
	val, err := NewValidator(cfg.Validator)
	if err != nil {
		return nil, err
	}

	logger.Debug(fmt.Sprintf("Engine initialized: parsing_mode=%v, max_concurrent_docs=%d, max_workers_per_doc=%d",
		cfg.ParsingMode, cfg.MaxConcurrentDocs, cfg.MaxWorkersPerDoc), true)

	return &Engine{
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentDocs)),
		parser:    parser,
		rewriter:  rw,
		zorder:    zm,
		validator: val,
	}, nil
}

// Rewriter exposes the overlay store for direct use.
func (e *Engine) Rewriter() *Rewriter { return e.rewriter }

// ZOrder exposes the stacking manager for direct use.
func (e *Engine) ZOrder() *Manager { return e.zorder }

// Validator exposes the rule engine so callers can register or
// disable rules.
func (e *Engine) Validator() *Validator { return e.validator }

// ExtractSpans parses every page of the document concurrently and
// returns the spans in page order, index 0 holding page 1.
func (e *Engine) ExtractSpans(ctx context.Context, doc Document) ([][]Span, error) {
	if err := e.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	total := doc.NumPages()
	logger.Debug(fmt.Sprintf("Starting span extraction: pages=%d", total), true)
	if total == 0 {
		return nil, nil
	}

	numWorkers := e.adjustWorkerCount(e.cfg.MaxWorkersPerDoc)
	jobs, results := make(chan int, total), make(chan spanResult, total)

	var wg sync.WaitGroup
	e.startWorkers(ctx, doc, jobs, results, numWorkers, &wg)
	if err := e.feedJobs(ctx, total, jobs); err != nil {
		close(jobs)
		wg.Wait()
		return nil, err
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]Span, total)
	for res := range results {
		if res.err != nil && e.cfg.ParsingMode == Strict {
			logger.Debug(fmt.Sprintf("Strict mode error — stopping extraction: page=%d err=%v", res.index, res.err))
			return nil, fmt.Errorf("strict mode failed on page %d: %w", res.index, res.err)
		}
		out[res.index-1] = res.spans
	}
	logger.Debug(fmt.Sprintf("Span extraction completed: pages=%d", total), true)
	return out, nil
}

type spanResult struct {
	index int
	spans []Span
	err   error
}

func (e *Engine) startWorkers(ctx context.Context, doc Document, jobs <-chan int, results chan<- spanResult, numWorkers int, wg *sync.WaitGroup) {
	logger.Debug(fmt.Sprintf("Spawning workers: num_workers=%d", numWorkers), true)
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range jobs {
				spans, err := e.parsePageWithRetries(ctx, doc, i)
				results <- spanResult{i, spans, err}
				if err != nil {
					logger.Debug(fmt.Sprintf("Worker: page parse error: worker_id=%d page=%d err=%v", id, i, err), true)
				}
			}
		}(w)
	}
}

func (e *Engine) parsePageWithRetries(ctx context.Context, doc Document, page int) ([]Span, error) {
	var spans []Span
	var err error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		ctxPage, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
		spans, err = e.parser.PageSpans(ctxPage, doc, page)
		cancel()
		if err == nil {
			break
		}
		logger.Debug(fmt.Sprintf("Retrying page parse: attempt=%d err=%v", attempt, err), true)
	}
	return spans, err
}

func (e *Engine) feedJobs(ctx context.Context, total int, jobs chan<- int) error {
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled while feeding jobs", true)
			return ctx.Err()
		case jobs <- i:
		}
	}
	return nil
}

func (e *Engine) acquireSlot(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	return nil
}

func (e *Engine) adjustWorkerCount(maxWorkers int) int {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > runtime.NumCPU()/2 {
		maxWorkers = runtime.NumCPU()
	}
	return maxWorkers
}

// ReplaceText finds every occurrence of find on the page and plans a
// width-preserving overlay replacing it with replace. The returned
// overlays are planned (or applied, with opts.Apply) but never
// committed; Save commits after validation.
func (e *Engine) ReplaceText(ctx context.Context, doc Document, page int, find, replace string, opts ReplaceOptions) ([]*Overlay, error) {
	if page < 1 || page > doc.NumPages() {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, doc.NumPages())
	}
	spans, err := e.parser.PageSpans(ctx, doc, page)
	if err != nil {
		return nil, fmt.Errorf("parse page %d: %w", page, err)
	}
	matches := FindText(spans, find)
	if len(matches) == 0 {
		return nil, nil
	}

	var overlays []*Overlay
	for _, m := range matches {
		span := spans[m.SpanStart]
		fontChanged := opts.Font != "" && opts.Font != span.Font
		if fontChanged {
			span.Font = opts.Font
		}
		metrics := doc.Metrics(span.Font)
		if metrics == nil {
			metrics = BuiltinMetricsFor(span.Font)
		}
		fitter := NewFitter(e.cfg.Fit, metrics, span.FontSize)
		fit := fitter.Fit(m.Rect.Width(), replace, opts.Fit)
		plan := fitter.TJPlan(fit)

		strategy := opts.Strategy
		if strategy == "" {
			strategy = e.rewriter.Recommend(span, replace, fontChanged, opts.HasSignatures)
		}
		ov := e.rewriter.Plan(page, span, fit, plan, OverlayOptions{
			Strategy: strategy,
			Mode:     opts.Mode,
			Level:    opts.Level,
			Color:    opts.Color,
		})
		// Each overlay layer gets its own stacking slot; the semantic
		// bands keep hide layers below the text layer.
		for i := range ov.Layers {
			layer, err := e.zorder.Add(page, ov.Layers[i].Rect, ov.Layers[i].Level)
			if err != nil {
				return overlays, fmt.Errorf("stacking overlay %s: %w", ov.ID, err)
			}
			ov.Layers[i].Z = layer.Z
			if ov.Layers[i].Kind == LayerText {
				ov.ZOrder = layer.Z
			}
		}

		if opts.Apply {
			if err := e.rewriter.Apply(ctx, doc, ov.ID); err != nil {
				return overlays, err
			}
		}
		overlays = append(overlays, ov)

		e.mu.Lock()
		e.mods = append(e.mods, ModificationInfo{
			Page:    page,
			Font:    span.Font,
			Payload: fit.Text,
			Rect:    ov.Target,
		})
		e.mu.Unlock()
	}
	logger.Debug(fmt.Sprintf("ReplaceText planned overlays: page=%d find=%q count=%d", page, find, len(overlays)), true)
	return overlays, nil
}

// Snapshot assembles the validation view of the document and the
// pending modifications. Page indexes in the snapshot are 0-based.
func (e *Engine) Snapshot(doc Document) *DocumentInfo {
	info := &DocumentInfo{UncommittedOverlays: e.rewriter.UncommittedCount()}
	fontSeen := make(map[string]bool)
	for p := 1; p <= doc.NumPages(); p++ {
		w, h := doc.PageSize(p)
		info.Pages = append(info.Pages, PageInfo{
			Width: w, Height: h,
			OverlayCount: len(e.rewriter.Overlays(p)),
		})
		for _, f := range doc.Fonts(p) {
			if !fontSeen[f.Name] {
				fontSeen[f.Name] = true
				info.Fonts = append(info.Fonts, f)
			}
		}
	}
	e.mu.Lock()
	for _, mod := range e.mods {
		m := mod
		m.Page-- // validation rules index pages from 0
		info.Modifications = append(info.Modifications, m)
	}
	e.mu.Unlock()
	return info
}

// Save validates the document and, when the verdict is acceptable,
// applies any still-planned overlays and commits everything. The
// report is returned in both outcomes so callers can show findings.
func (e *Engine) Save(ctx context.Context, doc Document) (*Report, error) {
	snap := e.Snapshot(doc)
	// Save commits the pending overlays itself, so they do not count
	// as left behind. MOD_001 still protects hosts that validate and
	// save outside the engine.
	snap.UncommittedOverlays = 0
	report := e.validator.Validate(ctx, snap)
	if e.blocking(report) {
		return report, fmt.Errorf("%w: %s with %d issues", ErrValidationFailed, report.Result, len(report.Issues))
	}
	for _, ov := range e.rewriter.Overlays(-1) {
		if ov.State == OverlayPlanned {
			if err := e.rewriter.Apply(ctx, doc, ov.ID); err != nil {
				return report, err
			}
		}
	}
	committed, err := e.rewriter.Commit(ctx)
	if err != nil {
		return report, err
	}
	logger.Debug(fmt.Sprintf("Save completed: committed=%d result=%s", committed, report.Result), true)
	return report, nil
}

// blocking reports whether the validation verdict stops a save under
// the configured FailOn threshold.
func (e *Engine) blocking(report *Report) bool {
	for sev, n := range report.Counts {
		if n > 0 && sev.AtLeast(e.cfg.FailOn) {
			return true
		}
	}
	return false
}

// QuickCheck runs only the critical rules against the current state.
func (e *Engine) QuickCheck(ctx context.Context, doc Document) *Report {
	return e.validator.QuickValidate(ctx, e.Snapshot(doc))
}
