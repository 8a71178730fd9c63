package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"htmlvault/internal/model"
	"htmlvault/internal/repository"
)

// DocumentMongo is a MongoDB implementation of repository.DocumentRepository.
// Documents are stored one per BSON document with media embedded.
type DocumentMongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ repository.DocumentRepository = (*DocumentMongo)(nil)

// NewDocumentMongo creates a repository bound to database.collection.
func NewDocumentMongo(client *mongo.Client, database, collection string) *DocumentMongo {
	return &DocumentMongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

type mediaRecord struct {
	Type         string `bson:"type"`
	Path         string `bson:"path"`
	OriginalName string `bson:"original_name"`
	Size         int64  `bson:"size"`
}

type documentRecord struct {
	ID           string        `bson:"_id"`
	FileName     string        `bson:"file_name"`
	OriginalName string        `bson:"original_name"`
	FilePath     string        `bson:"file_path"`
	Title        string        `bson:"title"`
	Excerpt      string        `bson:"excerpt"`
	Content      string        `bson:"content,omitempty"`
	TextContent  string        `bson:"text_content,omitempty"`
	Media        []mediaRecord `bson:"media"`
	Size         int64         `bson:"size"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func toRecord(d *model.Document) documentRecord {
	media := make([]mediaRecord, 0, len(d.Media))
	for _, m := range d.Media {
		media = append(media, mediaRecord{
			Type:         string(m.Type),
			Path:         m.Path,
			OriginalName: m.OriginalName,
			Size:         m.Size,
		})
	}
	return documentRecord{
		ID:           d.ID,
		FileName:     d.FileName,
		OriginalName: d.OriginalName,
		FilePath:     d.FilePath,
		Title:        d.Title,
		Excerpt:      d.Excerpt,
		Content:      d.Content,
		TextContent:  d.TextContent,
		Media:        media,
		Size:         d.Size,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (r documentRecord) toModel() *model.Document {
	media := make([]model.Media, 0, len(r.Media))
	for _, m := range r.Media {
		media = append(media, model.Media{
			Type:         model.MediaType(m.Type),
			Path:         m.Path,
			OriginalName: m.OriginalName,
			Size:         m.Size,
		})
	}
	return &model.Document{
		ID:           r.ID,
		FileName:     r.FileName,
		OriginalName: r.OriginalName,
		FilePath:     r.FilePath,
		Title:        r.Title,
		Excerpt:      r.Excerpt,
		Content:      r.Content,
		TextContent:  r.TextContent,
		Media:        media,
		Size:         r.Size,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// EnsureIndexes creates the text, media type and date indexes. It is idempotent.
func (r *DocumentMongo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "text_content", Value: "text"}, {Key: "original_name", Value: "text"}},
			Options: options.Index().
				SetName("documents_text").
				SetDefaultLanguage("none"),
		},
		{Keys: bson.D{{Key: "media.type", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "file_path", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Create inserts a new document.
func (r *DocumentMongo) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	rec := toRecord(doc)
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentMongo) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var rec documentRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

// List returns the newest documents first, without content.
func (r *DocumentMongo) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.find(ctx, bson.D{}, pageOptions(pq).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"content": 0, "text_content": 0}))
}

// Search runs a filtered $text query, keeping text_content in the results.
func (r *DocumentMongo) Search(ctx context.Context, q repository.SearchQuery) (*repository.PageResult[model.Document], error) {
	projection := bson.M{"content": 0}
	if q.Text != "" {
		projection["score"] = bson.M{"$meta": "textScore"}
	}
	return r.find(ctx, searchFilter(q), pageOptions(q.Page).
		SetSort(searchSort(q)).
		SetProjection(projection))
}

func (r *DocumentMongo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) (*repository.PageResult[model.Document], error) {
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]model.Document, 0)
	for cursor.Next(ctx) {
		var rec documentRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		items = append(items, *rec.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: int(total)}, nil
}

func pageOptions(pq repository.PageQuery) *options.FindOptions {
	return options.Find().SetLimit(int64(pq.Limit)).SetSkip(int64(pq.Offset))
}

func searchFilter(q repository.SearchQuery) bson.D {
	filter := bson.D{}
	if q.Text != "" {
		filter = append(filter, bson.E{Key: "$text", Value: bson.M{"$search": q.Text}})
	}
	if q.MediaType != "" {
		filter = append(filter, bson.E{Key: "media.type", Value: string(q.MediaType)})
	}
	if q.From != nil || q.To != nil {
		rng := bson.M{}
		if q.From != nil {
			rng["$gte"] = q.From.UTC()
		}
		if q.To != nil {
			rng["$lte"] = q.To.UTC()
		}
		filter = append(filter, bson.E{Key: "created_at", Value: rng})
	}
	return filter
}

func searchSort(q repository.SearchQuery) bson.D {
	dir := -1
	if q.Ascending {
		dir = 1
	}
	switch q.SortField {
	case repository.SortRelevance:
		if q.Text != "" {
			return bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}, {Key: "created_at", Value: -1}}
		}
	case repository.SortUpdatedAt, repository.SortOriginalName, repository.SortSize:
		return bson.D{{Key: q.SortField, Value: dir}, {Key: "_id", Value: dir}}
	}
	return bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}
}

// Suggest returns original names containing term, case-insensitively.
func (r *DocumentMongo) Suggest(ctx context.Context, term string, limit int) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"original_name": 1}).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, suggestFilter(term), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	type nameOnly struct {
		OriginalName string `bson:"original_name"`
	}
	names := make([]string, 0)
	for cursor.Next(ctx) {
		var n nameOnly
		if err := cursor.Decode(&n); err != nil {
			return nil, err
		}
		names = append(names, n.OriginalName)
	}
	return names, cursor.Err()
}

func suggestFilter(term string) bson.M {
	return bson.M{"original_name": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}}
}

// Stats aggregates totals, media counts by type, and documents per month.
func (r *DocumentMongo) Stats(ctx context.Context) (*model.Stats, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	stats := &model.Stats{
		TotalFiles:       total,
		FilesByMediaType: make([]model.MediaTypeCount, 0),
		FilesByDate:      make([]model.MonthCount, 0),
	}

	cursor, err := r.coll.Aggregate(ctx, mediaTypePipeline())
	if err != nil {
		return nil, err
	}
	var byType []struct {
		Type  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &byType); err != nil {
		return nil, err
	}
	for _, t := range byType {
		stats.FilesByMediaType = append(stats.FilesByMediaType, model.MediaTypeCount{Type: model.MediaType(t.Type), Count: t.Count})
	}

	cursor, err = r.coll.Aggregate(ctx, monthPipeline())
	if err != nil {
		return nil, err
	}
	var byMonth []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &byMonth); err != nil {
		return nil, err
	}
	for _, m := range byMonth {
		stats.FilesByDate = append(stats.FilesByDate, model.MonthCount{Year: m.ID.Year, Month: m.ID.Month, Count: m.Count})
	}
	return stats, nil
}

func mediaTypePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$unwind", Value: "$media"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$media.type"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func monthPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$created_at"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$created_at"}}},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}
}

// Update applies the metadata patch and returns the updated document.
func (r *DocumentMongo) Update(ctx context.Context, id string, patch model.DocumentPatch, updatedAt time.Time) (*model.Document, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec documentRecord
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, updateDoc(patch, updatedAt), opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func updateDoc(patch model.DocumentPatch, updatedAt time.Time) bson.M {
	set := bson.M{"updated_at": updatedAt.UTC()}
	if patch.OriginalName != nil {
		set["original_name"] = *patch.OriginalName
	}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	return bson.M{"$set": set}
}

// Delete removes a document by ID. Missing documents are not an error.
func (r *DocumentMongo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Ping checks connectivity to the primary.
func (r *DocumentMongo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
