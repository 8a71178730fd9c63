package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"htmlvault/internal/events"
	"htmlvault/internal/export"
	"htmlvault/internal/ingest"
	"htmlvault/internal/logger"
	"htmlvault/internal/model"
	"htmlvault/internal/repository"
	"htmlvault/internal/storage"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrNotFound      = errors.New("document not found")
	ErrReaderNil     = errors.New("reader is nil")
	ErrNotHTML       = errors.New("only .html and .htm files are accepted")
	ErrEmptyPatch    = errors.New("at least one of original_name or title is required")
	ErrTooLarge      = errors.New("file exceeds the upload size limit")
	ErrNoFiles       = errors.New("no files uploaded")
	ErrTooManyFiles  = errors.New("too many files in one upload")
	ErrInvalidQuery  = errors.New("invalid search query")
	ErrDuplicateName = errors.New("another file in this upload has the same name")
)

// MaxBulkFiles is the maximum number of files accepted by UploadBulk.
const MaxBulkFiles = 100

const (
	defaultLimit    = 10
	maxLimit        = 100
	suggestionLimit = 5
	minSuggestTerm  = 2
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// SearchParams are the user-facing search options. Empty fields mean no filter.
type SearchParams struct {
	Query     string
	MediaType string
	StartDate *time.Time
	EndDate   *time.Time
	SortField string
	SortOrder string
	Limit     int
	Offset    int
}

// BulkFile is one file of a multi-file upload.
type BulkFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Bulk item statuses.
const (
	BulkSuccess = "success"
	BulkSkipped = "skipped"
)

// BulkItem reports the outcome for one file that did not fail.
type BulkItem struct {
	File       string `json:"file"`
	Status     string `json:"status"`
	ID         string `json:"id,omitempty"`
	MediaCount int    `json:"media_count"`
	Message    string `json:"message,omitempty"`
}

// BulkError reports a file that could not be ingested.
type BulkError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// BulkResult is the outcome of UploadBulk.
type BulkResult struct {
	Results      []BulkItem  `json:"results"`
	Errors       []BulkError `json:"errors"`
	TotalFiles   int         `json:"total_files"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload ingests a single HTML export and persists it.
	// References relative to the upload cannot be resolved, so only absolute local paths are copied.
	Upload(ctx context.Context, r io.Reader, originalFilename string, size int64) (*model.Document, error)

	// UploadBulk stages all files together so HTML exports can reference media uploaded alongside them.
	UploadBulk(ctx context.Context, files []BulkFile) (*BulkResult, error)

	// Import ingests an HTML file from the local filesystem, resolving references against its directory.
	Import(ctx context.Context, path string) (*model.Document, error)

	// List returns documents using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Search filters documents by text, media type and creation date.
	Search(ctx context.Context, p SearchParams) (*DocumentListResult, error)

	// Suggestions returns up to five document names matching term.
	Suggestions(ctx context.Context, term string) ([]string, error)

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*model.Stats, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Update changes document metadata.
	Update(ctx context.Context, id string, patch model.DocumentPatch) (*model.Document, error)

	// Delete removes the stored file, every media copy, then the record.
	Delete(ctx context.Context, id string) error

	// Markdown renders the stored document as GitHub-flavored Markdown.
	Markdown(ctx context.Context, id string) (string, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store      storage.Storage
	repo       repository.DocumentRepository
	processor  *ingest.Processor
	events     events.Publisher
	markdown   *export.Markdown
	log        *zap.Logger
	tracer     trace.Tracer
	stagingDir string
	maxBytes   int64
	confine    bool
	now        func() time.Time
}

// Option configures the document service.
type Option func(*documentService)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *documentService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEvents sets the publisher notified after ingest and delete.
func WithEvents(p events.Publisher) Option {
	return func(s *documentService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMarkdown sets the Markdown converter.
func WithMarkdown(m *export.Markdown) Option {
	return func(s *documentService) {
		if m != nil {
			s.markdown = m
		}
	}
}

// WithStagingDir sets the parent directory for per-request staging directories.
func WithStagingDir(dir string) Option {
	return func(s *documentService) { s.stagingDir = dir }
}

// WithMaxUploadBytes limits the size of a single uploaded file.
func WithMaxUploadBytes(n int64) Option {
	return func(s *documentService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithConfinedUploads restricts media references of uploaded files to the
// files staged with them. Import is never confined.
func WithConfinedUploads(on bool) Option {
	return func(s *documentService) { s.confine = on }
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, processor *ingest.Processor, opts ...Option) DocumentService {
	s := &documentService{
		store:     store,
		repo:      repo,
		processor: processor,
		events:    events.Noop{},
		markdown:  export.NewMarkdown(""),
		log:       zap.NewNop(),
		tracer:    otel.Tracer("htmlvault/service"),
		maxBytes:  100 << 20,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsHTML reports whether name has an .html or .htm extension.
func IsHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	name := baseName(originalFilename)
	if !IsHTML(name) {
		return nil, ErrNotHTML
	}

	dir, err := os.MkdirTemp(s.stagingDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	n, err := s.stage(path, r)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = n
	}
	return s.ingestFile(ctx, path, name, size, s.uploadOptions(dir)...)
}

func (s *documentService) UploadBulk(ctx context.Context, files []BulkFile) (*BulkResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > MaxBulkFiles {
		return nil, ErrTooManyFiles
	}

	dir, err := os.MkdirTemp(s.stagingDir, "bulk-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	res := &BulkResult{
		Results:    make([]BulkItem, 0, len(files)),
		Errors:     make([]BulkError, 0),
		TotalFiles: len(files),
	}
	fail := func(file string, err error) {
		logger.For(ctx, s.log).Warn("bulk upload file failed", zap.String("file", file), zap.Error(err))
		res.Errors = append(res.Errors, BulkError{File: file, Error: publicMessage(err)})
	}

	// Every file must be on disk before any HTML is processed so companion
	// media resolve regardless of upload order.
	staged := make([]bool, len(files))
	for i, f := range files {
		if err := s.stageBulkFile(dir, f); err != nil {
			fail(f.Filename, err)
			continue
		}
		staged[i] = true
	}

	for i, f := range files {
		if !staged[i] {
			continue
		}
		name := baseName(f.Filename)
		if !IsHTML(name) {
			res.Results = append(res.Results, BulkItem{
				File:    f.Filename,
				Status:  BulkSkipped,
				Message: "not an HTML file, used as media if referenced",
			})
			continue
		}
		doc, err := s.ingestFile(ctx, filepath.Join(dir, name), name, f.Size, s.uploadOptions(dir)...)
		if err != nil {
			fail(f.Filename, err)
			continue
		}
		res.Results = append(res.Results, BulkItem{
			File:       f.Filename,
			Status:     BulkSuccess,
			ID:         doc.ID,
			MediaCount: len(doc.Media),
		})
		res.SuccessCount++
	}
	res.ErrorCount = len(res.Errors)
	return res, nil
}

func (s *documentService) stageBulkFile(dir string, f BulkFile) error {
	if f.Open == nil {
		return ErrReaderNil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()
	_, err = s.stage(filepath.Join(dir, baseName(f.Filename)), rc)
	return err
}

func (s *documentService) uploadOptions(dir string) []ingest.ProcessOption {
	if !s.confine {
		return nil
	}
	return []ingest.ProcessOption{ingest.ConfineTo(dir)}
}

// stage writes r to path, enforcing the upload size limit.
func (s *documentService) stage(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return 0, ErrDuplicateName
	}
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	if n > s.maxBytes {
		return 0, ErrTooLarge
	}
	return n, nil
}

func (s *documentService) Import(ctx context.Context, path string) (*model.Document, error) {
	if !IsHTML(path) {
		return nil, ErrNotHTML
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() > s.maxBytes {
		return nil, ErrTooLarge
	}
	return s.ingestFile(ctx, abs, filepath.Base(abs), st.Size())
}

// ingestFile processes the HTML file at path and persists the result.
// Stored HTML and media copies are removed again if the record cannot be saved.
func (s *documentService) ingestFile(ctx context.Context, path, originalName string, size int64, opts ...ingest.ProcessOption) (*model.Document, error) {
	ctx, span := s.tracer.Start(ctx, "service.ingest",
		trace.WithAttributes(attribute.String("document.original_name", originalName)))
	defer span.End()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	content, err := decodeHTML(raw)
	if err != nil {
		return nil, err
	}

	res, err := s.processor.Process(ctx, content, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("process html: %w", err)
	}
	summary := ingest.Summarize(res.HTML, path)

	key := ingest.UniqueName(strings.ToLower(filepath.Ext(originalName)))
	info, err := s.store.Put(ctx, key, strings.NewReader(res.HTML), storage.PutObjectOptions{
		Size:        int64(len(res.HTML)),
		ContentType: "text/html; charset=utf-8",
		Metadata:    map[string]string{"original-filename": originalName},
	})
	if err != nil {
		s.removeMedia(ctx, res.Media)
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := s.now()
	doc := &model.Document{
		ID:           uuid.New().String(),
		FileName:     info.Key,
		OriginalName: originalName,
		FilePath:     info.Key,
		Title:        summary.Title,
		Excerpt:      summary.Excerpt,
		Content:      res.HTML,
		TextContent:  res.Text,
		Media:        res.Media,
		Size:         size,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the document and every media copy from storage
		s.removeMedia(ctx, res.Media)
		if delErr := s.store.Delete(ctx, info.Key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	span.SetAttributes(attribute.String("document.id", stored.ID), attribute.Int("document.media_count", len(stored.Media)))
	logger.For(ctx, s.log).Info("document ingested",
		zap.String("id", stored.ID),
		zap.String("original_name", originalName),
		zap.Int("media_count", len(stored.Media)))
	s.publish(ctx, events.Event{
		Kind:         events.KindIngested,
		DocumentID:   stored.ID,
		OriginalName: stored.OriginalName,
		MediaCount:   len(stored.Media),
		OccurredAt:   now,
	})
	return stored, nil
}

// decodeHTML converts raw bytes to UTF-8 using BOM, meta charset and content sniffing.
func decodeHTML(raw []byte) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), "text/html")
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	return string(out), nil
}

func (s *documentService) removeMedia(ctx context.Context, media []model.Media) {
	for _, m := range media {
		if err := s.store.Delete(ctx, m.Path); err != nil {
			logger.For(ctx, s.log).Error("rollback media delete failed", zap.String("key", m.Path), zap.Error(err))
		}
	}
}

func (s *documentService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		logger.For(ctx, s.log).Warn("publish event failed", zap.String("kind", e.Kind), zap.String("id", e.DocumentID), zap.Error(err))
	}
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	limit, offset = normalizePage(limit, offset)

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *documentService) Search(ctx context.Context, p SearchParams) (*DocumentListResult, error) {
	q, err := buildSearchQuery(p)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func buildSearchQuery(p SearchParams) (repository.SearchQuery, error) {
	limit, offset := normalizePage(p.Limit, p.Offset)
	q := repository.SearchQuery{
		Text:      strings.TrimSpace(p.Query),
		From:      p.StartDate,
		To:        p.EndDate,
		SortField: repository.SortCreatedAt,
		Page:      repository.PageQuery{Limit: limit, Offset: offset},
	}
	if p.MediaType != "" {
		t, err := model.ParseMediaType(p.MediaType)
		if err != nil {
			return q, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		q.MediaType = t
	}
	if p.SortField != "" {
		if !repository.ValidSortField(p.SortField) {
			return q, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, p.SortField)
		}
		q.SortField = p.SortField
	}
	switch strings.ToLower(p.SortOrder) {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return q, fmt.Errorf("%w: sort order must be asc or desc", ErrInvalidQuery)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, fmt.Errorf("%w: end date is before start date", ErrInvalidQuery)
	}
	return q, nil
}

func (s *documentService) Suggestions(ctx context.Context, term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSuggestTerm {
		return []string{}, nil
	}
	names, err := s.repo.Suggest(ctx, term, suggestionLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSuffix(n, filepath.Ext(n))
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func (s *documentService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Update(ctx context.Context, id string, patch model.DocumentPatch) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if patch.OriginalName != nil {
		name := strings.TrimSpace(*patch.OriginalName)
		if name == "" {
			return nil, fmt.Errorf("%w: original_name must not be blank", ErrEmptyPatch)
		}
		patch.OriginalName = &name
	}
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	doc, err := s.repo.Update(ctx, id, patch, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes a document from storage, then deletes its record.
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Delete from storage first; if this fails, keep DB row so the files can still be found
	if err := s.store.Delete(ctx, doc.FilePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	for _, m := range doc.Media {
		if err := s.store.Delete(ctx, m.Path); err != nil {
			return fmt.Errorf("delete media %s: %w", m.Path, err)
		}
	}
	// Delete DB row (repository ignores missing row errors as per contract)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Kind:         events.KindDeleted,
		DocumentID:   doc.ID,
		OriginalName: doc.OriginalName,
		MediaCount:   len(doc.Media),
		OccurredAt:   s.now(),
	})
	return nil
}

func (s *documentService) Markdown(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	out, err := s.markdown.Convert(doc.Content)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return out, nil
}

// baseName strips any client-supplied directories from a filename.
func baseName(name string) string {
	return filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
}

// publicMessage is the error text safe to return to API clients.
func publicMessage(err error) string {
	for _, known := range []error{ErrNotHTML, ErrTooLarge, ErrReaderNil, ErrDuplicateName, ingest.ErrStorageUnavailable} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "failed to process file"
}
