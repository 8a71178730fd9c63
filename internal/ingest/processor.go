package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"htmlvault/internal/logger"
	"htmlvault/internal/model"
	"htmlvault/internal/storage"
)

// ErrStorageUnavailable is returned when managed storage cannot accept writes at all.
var ErrStorageUnavailable = errors.New("managed storage unavailable")

var errOutsideRoot = errors.New("reference outside the allowed directory")

// Result is the output of one ingestion pass.
type Result struct {
	HTML  string
	Text  string
	Media []model.Media
}

// Processor runs the ingestion pipeline against a managed storage backend.
type Processor struct {
	store   storage.Storage
	log     *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	newName func(ext string) string
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for skipped references.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a Processor writing copies into store.
func NewProcessor(store storage.Storage, opts ...Option) *Processor {
	p := &Processor{
		store:   store,
		log:     zap.NewNop(),
		tracer:  otel.Tracer("htmlvault/ingest"),
		newName: UniqueName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessOption adjusts a single Process call.
type ProcessOption func(*processCall)

type processCall struct {
	root string
}

// ConfineTo skips every reference whose file lies outside dir, absolute
// paths and ".." escapes included. Used for files received over HTTP.
func ConfineTo(dir string) ProcessOption {
	return func(c *processCall) { c.root = dir }
}

// Process ingests rawHTML that was read from sourcePath.
// Relative references are resolved against the directory of sourcePath.
// Only an unwritable storage or an unparseable document produce an error;
// references that cannot be copied are left untouched and omitted from Result.Media.
func (p *Processor) Process(ctx context.Context, rawHTML, sourcePath string, opts ...ProcessOption) (*Result, error) {
	var call processCall
	for _, opt := range opts {
		opt(&call)
	}

	ctx, span := p.tracer.Start(ctx, "ingest.Process",
		trace.WithAttributes(attribute.String("ingest.source_path", sourcePath)))
	defer span.End()
	start := time.Now()

	if err := p.store.Ping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage unavailable")
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{
		Text:  extractText(doc),
		Media: make([]model.Media, 0),
	}
	baseDir := filepath.Dir(sourcePath)

	for _, rule := range referenceRules {
		doc.Find(rule.selector).Each(func(_ int, s *goquery.Selection) {
			ref, ok := s.Attr(rule.attr)
			if !ok {
				return
			}
			mediaType, ok := rule.classify(ref)
			if !ok {
				return
			}
			m, ok := p.copyReference(ctx, ref, mediaType, baseDir, call.root)
			if !ok {
				return
			}
			s.SetAttr(rule.attr, storage.PublicPath(m.Path))
			res.Media = append(res.Media, m)
		})
	}

	out, err := doc.Html()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, fmt.Errorf("render html: %w", err)
	}
	res.HTML = out

	span.SetAttributes(attribute.Int("ingest.media_count", len(res.Media)))
	p.metrics.observeDuration(time.Since(start))
	return res, nil
}

// copyReference copies the file behind ref into storage.
// The boolean is false when the reference was skipped.
func (p *Processor) copyReference(ctx context.Context, ref string, mediaType model.MediaType, baseDir, root string) (model.Media, bool) {
	var (
		f   *os.File
		src string
		err error
	)
	for _, candidate := range candidatePaths(ref, baseDir) {
		src = candidate
		if root != "" && !withinDir(src, root) {
			err = errOutsideRoot
			continue
		}
		f, err = os.Open(src)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if f == nil {
		reason := skipUnreadable
		switch {
		case errors.Is(err, errOutsideRoot):
			reason = skipOutside
		case errors.Is(err, fs.ErrNotExist):
			reason = skipNotFound
		}
		p.skip(ctx, reason, ref, src, err)
		return model.Media{}, false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		p.skip(ctx, skipUnreadable, ref, src, err)
		return model.Media{}, false
	}
	if !st.Mode().IsRegular() {
		p.skip(ctx, skipNotFound, ref, src, errors.New("not a regular file"))
		return model.Media{}, false
	}

	originalName := filepath.Base(src)
	key := p.newName(filepath.Ext(originalName))
	info, err := p.store.Put(ctx, key, f, storage.PutObjectOptions{
		Size:     st.Size(),
		Metadata: map[string]string{"original-filename": originalName},
	})
	if err != nil {
		p.skip(ctx, skipCopyFailed, ref, src, err)
		return model.Media{}, false
	}

	p.metrics.countMedia(mediaType)
	return model.Media{
		Type:         mediaType,
		Path:         info.Key,
		OriginalName: originalName,
		Size:         info.Size,
	}, true
}

func (p *Processor) skip(ctx context.Context, reason, ref, src string, err error) {
	p.metrics.countSkipped(reason)
	fields := []zap.Field{
		zap.String("reference", ref),
		zap.String("source_path", src),
		zap.String("reason", reason),
		zap.Error(err),
	}
	log := logger.For(ctx, p.log)
	if reason == skipCopyFailed {
		log.Error("media copy failed, reference skipped", fields...)
		return
	}
	log.Warn("media file not found, reference skipped", fields...)
}
