package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"htmlvault/internal/ingest"
	"htmlvault/internal/model"
	"htmlvault/internal/service"
	serviceMocks "htmlvault/internal/service/mocks"
	"htmlvault/internal/storage"
	storageMocks "htmlvault/internal/storage/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	store := new(storageMocks.MockStorage)
	app := fiber.New()
	app.Get("/health", HealthCheck(store, nil))

	t.Run("healthy", func(t *testing.T) {
		store.On("Ping", mock.Anything).Return(nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		store.On("Ping", mock.Anything).Return(errors.New("disk error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	store.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.DocumentListResult{
			Items: []model.Document{{ID: uuid.New().String(), FileName: "chat.html"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result listResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, pagination{Total: 1, Page: 1, Limit: 10, Pages: 1}, result.Pagination)
		mockSvc.AssertExpectations(t)
	})

	t.Run("page parameter", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 5, 10).Return(&service.DocumentListResult{Items: []model.Document{}, Total: 12}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=5&page=3", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result listResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, 3, result.Pagination.Page)
		assert.Equal(t, 3, result.Pagination.Pages)
		mockSvc.AssertExpectations(t)
	})

	t.Run("negative offset is clamped", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(&service.DocumentListResult{Items: []model.Document{}, Total: 25}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?offset=-15", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result listResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, pagination{Total: 25, Page: 1, Limit: 10, Pages: 3}, result.Pagination)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("invalid page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?page=x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_PAGE", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/documents", UploadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", map[string]string{"chat.html": "<p>hello</p>"})

		expectedDoc := &model.Document{
			ID:       uuid.New().String(),
			FileName: "chat-1.html",
			Media:    []model.Media{{Type: model.MediaImage, Path: "a.png"}},
		}
		mockSvc.On("Upload", mock.Anything, mock.Anything, "chat.html", int64(12)).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result uploadResponse
		json.NewDecoder(resp.Body).Decode(&result)
		require.NotNil(t, result.File)
		assert.Equal(t, expectedDoc.ID, result.File.ID)
		assert.Equal(t, 1, result.MediaCount)
		mockSvc.AssertExpectations(t)
	})

	t.Run("legacy field name", func(t *testing.T) {
		body, contentType := multipartBody(t, "htmlFile", map[string]string{"old.htm": "<p>x</p>"})

		mockSvc.On("Upload", mock.Anything, mock.Anything, "old.htm", mock.Anything).Return(&model.Document{ID: uuid.New().String()}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("not html", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", map[string]string{"notes.txt": "hello"})
		mockSvc.On("Upload", mock.Anything, mock.Anything, "notes.txt", mock.Anything).Return(nil, service.ErrNotHTML).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_FILE_TYPE", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage unavailable", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", map[string]string{"chat.html": "<p>x</p>"})
		mockSvc.On("Upload", mock.Anything, mock.Anything, "chat.html", mock.Anything).
			Return(nil, ingest.ErrStorageUnavailable).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", map[string]string{"chat.html": "hello"})
		mockSvc.On("Upload", mock.Anything, mock.Anything, "chat.html", mock.Anything).Return(nil, errors.New("upload failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "internal server error", res.Error.Message)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadBulk(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/documents/bulk", UploadBulk(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, contentType := multipartBody(t, "files", map[string]string{
			"chat.html": "<img src=\"a.png\">",
			"a.png":     "png",
		})

		matchFiles := mock.MatchedBy(func(files []service.BulkFile) bool {
			if len(files) != 2 {
				return false
			}
			for _, f := range files {
				rc, err := f.Open()
				if err != nil {
					return false
				}
				data, _ := io.ReadAll(rc)
				rc.Close()
				if int64(len(data)) != f.Size {
					return false
				}
			}
			return true
		})
		res := &service.BulkResult{
			Results:      []service.BulkItem{{File: "chat.html", Status: service.BulkSuccess}},
			Errors:       []service.BulkError{},
			TotalFiles:   1,
			SuccessCount: 1,
		}
		mockSvc.On("UploadBulk", mock.Anything, matchFiles).Return(res, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/bulk", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		assert.Equal(t, "Bulk upload processed", out["message"])
		assert.EqualValues(t, 1, out["success_count"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("no files", func(t *testing.T) {
		body, contentType := multipartBody(t, "other", map[string]string{"chat.html": "x"})

		req := httptest.NewRequest(http.MethodPost, "/documents/bulk", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too many files", func(t *testing.T) {
		body, contentType := multipartBody(t, "files", map[string]string{"chat.html": "x"})
		mockSvc.On("UploadBulk", mock.Anything, mock.Anything).Return(nil, service.ErrTooManyFiles).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/bulk", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "TOO_MANY_FILES", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents/:id", GetDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expectedDoc := &model.Document{ID: id, FileName: "chat.html", Content: "<p>x</p>"}
		mockSvc.On("Get", mock.Anything, id).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		assert.Equal(t, "<p>x</p>", result.Content)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Put("/documents/:id", UpdateDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		matchPatch := mock.MatchedBy(func(p model.DocumentPatch) bool {
			return p.OriginalName != nil && *p.OriginalName == "renamed.html" && p.Title == nil
		})
		mockSvc.On("Update", mock.Anything, id, matchPatch).Return(&model.Document{ID: id, OriginalName: "renamed.html"}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/documents/"+id, strings.NewReader(`{"original_name":"renamed.html"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "renamed.html", result.OriginalName)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/documents/"+uuid.New().String(), strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_BODY", res.Error.Code)
	})

	t.Run("empty patch", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Update", mock.Anything, id, mock.Anything).Return(nil, service.ErrEmptyPatch).Once()

		req := httptest.NewRequest(http.MethodPut, "/documents/"+id, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "EMPTY_PATCH", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Delete("/documents/:id", DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDocumentMarkdown(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents/:id/markdown", DocumentMarkdown(mockSvc))

	id := uuid.New().String()
	mockSvc.On("Markdown", mock.Anything, id).Return("# Chat\n\nhello", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/markdown", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "# Chat\n\nhello", string(data))
	mockSvc.AssertExpectations(t)
}

func TestSearchDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/search", SearchDocuments(mockSvc))

	t.Run("all filters", func(t *testing.T) {
		matchParams := mock.MatchedBy(func(p service.SearchParams) bool {
			return p.Query == "hello" &&
				p.MediaType == "video" &&
				p.SortField == "size" &&
				p.SortOrder == "asc" &&
				p.Limit == 20 && p.Offset == 20 &&
				p.StartDate != nil && p.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) &&
				p.EndDate != nil && p.EndDate.Equal(time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC))
		})
		mockSvc.On("Search", mock.Anything, matchParams).Return(&service.DocumentListResult{Items: []model.Document{}, Total: 0}, nil).Once()

		req := httptest.NewRequest(http.MethodGet,
			"/search?search=hello&media_type=video&start_date=2024-01-01&end_date=2024-01-31&sort_field=size&sort_order=asc&page=2&limit=20", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("rfc3339 dates are kept exact", func(t *testing.T) {
		matchParams := mock.MatchedBy(func(p service.SearchParams) bool {
			return p.StartDate == nil && p.EndDate != nil &&
				p.EndDate.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
		})
		mockSvc.On("Search", mock.Anything, matchParams).Return(&service.DocumentListResult{Items: []model.Document{}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/search?end_date=2024-02-01T10:00:00Z", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search?start_date=yesterday", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_DATE", res.Error.Code)
	})

	t.Run("invalid query", func(t *testing.T) {
		mockSvc.On("Search", mock.Anything, mock.Anything).Return(nil, service.ErrInvalidQuery).Once()

		req := httptest.NewRequest(http.MethodGet, "/search?media_type=pdf", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_QUERY", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestSearchSuggestionsAndStats(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/search/suggestions", SearchSuggestions(mockSvc))
	app.Get("/search/stats", SearchStats(mockSvc))

	mockSvc.On("Suggestions", mock.Anything, "ch").Return([]string{"chat", "chores"}, nil).Once()
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search/suggestions?term=ch", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var sugg map[string][]string
	json.NewDecoder(resp.Body).Decode(&sugg)
	assert.Equal(t, []string{"chat", "chores"}, sugg["suggestions"])

	stats := &model.Stats{
		TotalFiles:       4,
		FilesByMediaType: []model.MediaTypeCount{{Type: model.MediaImage, Count: 7}},
		FilesByDate:      []model.MonthCount{{Year: 2024, Month: 5, Count: 4}},
	}
	mockSvc.On("Stats", mock.Anything).Return(stats, nil).Once()
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/search/stats", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Stats
	json.NewDecoder(resp.Body).Decode(&got)
	assert.Equal(t, *stats, got)

	mockSvc.AssertExpectations(t)
}

func TestServeUpload(t *testing.T) {
	t.Run("local file is streamed", func(t *testing.T) {
		store, err := storage.NewLocal(t.TempDir())
		require.NoError(t, err)
		_, err = store.Put(context.Background(), "photo-1.png", strings.NewReader("png-bytes"), storage.PutObjectOptions{Size: 9, ContentType: "image/png"})
		require.NoError(t, err)

		app := fiber.New()
		app.Get("/uploads/:name", ServeUpload(store))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/photo-1.png", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")
		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "png-bytes", string(data))

		resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("object store redirects to presigned url", func(t *testing.T) {
		store := new(storageMocks.MockStorage)
		store.On("PresignGet", mock.Anything, "clip.mp4", presignExpiry).
			Return("https://minio.local/bucket/clip.mp4?sig=1", nil).Once()

		app := fiber.New()
		app.Get("/uploads/:name", ServeUpload(store))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/clip.mp4", nil))
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "https://minio.local/bucket/clip.mp4?sig=1", resp.Header.Get("Location"))
		store.AssertExpectations(t)
	})

	t.Run("backend error", func(t *testing.T) {
		store := new(storageMocks.MockStorage)
		store.On("PresignGet", mock.Anything, "x.png", presignExpiry).Return("", errors.New("down")).Once()
		store.On("Get", mock.Anything, "x.png").Return(nil, storage.ObjectInfo{}, errors.New("down")).Once()

		app := fiber.New()
		app.Get("/uploads/:name", ServeUpload(store))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/x.png", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		store.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockDocumentService)
	RegisterRoutes(app, mockSvc, nil)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("uploads not mounted without a store", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
