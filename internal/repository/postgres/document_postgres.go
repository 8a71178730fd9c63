package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"htmlvault/internal/model"
	"htmlvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const fullColumns = `id, file_name, original_name, file_path, title, excerpt, content, text_content, media, size, created_at, updated_at`

// Listing and search never return the rendered HTML.
const summaryColumns = `id, file_name, original_name, file_path, title, excerpt, media, size, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFull(row rowScanner) (*model.Document, error) {
	var (
		d     model.Document
		media []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.FileName,
		&d.OriginalName,
		&d.FilePath,
		&d.Title,
		&d.Excerpt,
		&d.Content,
		&d.TextContent,
		&media,
		&d.Size,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeMedia(media, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanSummary(row rowScanner, extra ...any) (*model.Document, error) {
	var (
		d     model.Document
		media []byte
	)
	dest := []any{
		&d.ID,
		&d.FileName,
		&d.OriginalName,
		&d.FilePath,
		&d.Title,
		&d.Excerpt,
		&media,
		&d.Size,
		&d.CreatedAt,
		&d.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := decodeMedia(media, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeMedia(raw []byte, d *model.Document) error {
	d.Media = make([]model.Media, 0)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &d.Media); err != nil {
		return fmt.Errorf("decode media: %w", err)
	}
	return nil
}

func encodeMedia(media []model.Media) ([]byte, error) {
	if media == nil {
		media = []model.Media{}
	}
	return json.Marshal(media)
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	media, err := encodeMedia(doc.Media)
	if err != nil {
		return nil, fmt.Errorf("encode media: %w", err)
	}
	q := `
		INSERT INTO documents (` + fullColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + fullColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.FileName,
		doc.OriginalName,
		doc.FilePath,
		doc.Title,
		doc.Excerpt,
		doc.Content,
		doc.TextContent,
		media,
		doc.Size,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanFull(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + fullColumns + ` FROM documents WHERE id = $1`
	d, err := scanFull(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	qList := `
		SELECT ` + summaryColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Search runs a filtered full-text query. Results include text_content but not content.
func (r *DocumentPostgres) Search(ctx context.Context, sq repository.SearchQuery) (*repository.PageResult[model.Document], error) {
	where, args, err := buildSearchWhere(sq)
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	rankExpr := "0::real"
	if sq.Text != "" {
		rankExpr = "ts_rank(search, plainto_tsquery('simple', $1))"
	}
	n := len(args)
	q := `SELECT ` + summaryColumns + `, text_content, ` + rankExpr + ` AS rank FROM documents` + where +
		` ORDER BY ` + orderBy(sq) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, sq.Page.Limit, sq.Page.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var (
			text string
			rank float64
		)
		d, err := scanSummary(rows, &text, &rank)
		if err != nil {
			return nil, err
		}
		d.TextContent = text
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// buildSearchWhere renders the WHERE clause of a search. The text query, when
// present, is always $1 so the rank expression can reference it.
func buildSearchWhere(sq repository.SearchQuery) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	if sq.Text != "" {
		args = append(args, sq.Text)
		conds = append(conds, fmt.Sprintf("search @@ plainto_tsquery('simple', $%d)", len(args)))
	}
	if sq.MediaType != "" {
		filter, err := json.Marshal([]map[string]model.MediaType{{"type": sq.MediaType}})
		if err != nil {
			return "", nil, err
		}
		args = append(args, string(filter))
		conds = append(conds, fmt.Sprintf("media @> $%d::jsonb", len(args)))
	}
	if sq.From != nil {
		args = append(args, *sq.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if sq.To != nil {
		args = append(args, *sq.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func orderBy(sq repository.SearchQuery) string {
	dir := "DESC"
	if sq.Ascending {
		dir = "ASC"
	}
	switch sq.SortField {
	case repository.SortRelevance:
		if sq.Text != "" {
			return "rank DESC, created_at DESC, id DESC"
		}
	case repository.SortUpdatedAt, repository.SortOriginalName, repository.SortSize:
		return sq.SortField + " " + dir + ", id " + dir
	}
	return "created_at " + dir + ", id " + dir
}

// Suggest returns distinct original names containing term.
func (r *DocumentPostgres) Suggest(ctx context.Context, term string, limit int) ([]string, error) {
	const q = `
		SELECT original_name
		FROM documents
		WHERE original_name ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, "%"+escapeLike(term)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Stats aggregates totals, media counts by type, and documents per month.
func (r *DocumentPostgres) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		FilesByMediaType: make([]model.MediaTypeCount, 0),
		FilesByDate:      make([]model.MonthCount, 0),
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.TotalFiles); err != nil {
		return nil, err
	}

	const qMedia = `
		SELECT m->>'type' AS type, COUNT(*)
		FROM documents, jsonb_array_elements(media) AS m
		GROUP BY type
		ORDER BY type
	`
	rows, err := r.db.QueryContext(ctx, qMedia)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c model.MediaTypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.FilesByMediaType = append(stats.FilesByMediaType, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const qDate = `
		SELECT EXTRACT(YEAR FROM created_at)::int AS year, EXTRACT(MONTH FROM created_at)::int AS month, COUNT(*)
		FROM documents
		GROUP BY year, month
		ORDER BY year, month
	`
	rows, err = r.db.QueryContext(ctx, qDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.MonthCount
		if err := rows.Scan(&c.Year, &c.Month, &c.Count); err != nil {
			return nil, err
		}
		stats.FilesByDate = append(stats.FilesByDate, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Update applies the metadata patch and returns the updated record.
func (r *DocumentPostgres) Update(ctx context.Context, id string, patch model.DocumentPatch, updatedAt time.Time) (*model.Document, error) {
	q := `
		UPDATE documents
		SET original_name = COALESCE($2, original_name),
		    title = COALESCE($3, title),
		    updated_at = $4
		WHERE id = $1
		RETURNING ` + fullColumns
	d, err := scanFull(r.db.QueryRowContext(ctx, q, id, nullString(patch.OriginalName), nullString(patch.Title), updatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Ping checks database connectivity.
func (r *DocumentPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
