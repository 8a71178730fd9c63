package handler

import (
	"io"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"htmlvault/internal/model"
	"htmlvault/internal/service"
)

// uploadFields are the multipart fields accepted for a single upload, in order.
var uploadFields = []string{"file", "htmlFile"}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type listResponse struct {
	Items      []model.Document `json:"data"`
	Total      int              `json:"total"`
	Pagination pagination       `json:"pagination"`
}

type uploadResponse struct {
	Message    string          `json:"message"`
	File       *model.Document `json:"file"`
	MediaCount int             `json:"media_count"`
}

type bulkResponse struct {
	Message string `json:"message"`
	*service.BulkResult
}

// pageParams reads limit and offset, or page when offset is absent.
// It returns a non-empty error code when a value is malformed.
func pageParams(c *fiber.Ctx) (limit, offset int, code string) {
	var err error
	limit, err = strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, "INVALID_LIMIT"
	}
	if limit <= 0 {
		limit = 10
	}
	if s := c.Query("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, "INVALID_OFFSET"
		}
		return limit, max(offset, 0), ""
	}
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return 0, 0, "INVALID_PAGE"
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit, ""
}

func newListResponse(res *service.DocumentListResult, limit, offset int) listResponse {
	if limit > 100 {
		limit = 100
	}
	return listResponse{
		Items: res.Items,
		Total: res.Total,
		Pagination: pagination{
			Total: res.Total,
			Page:  offset/limit + 1,
			Limit: limit,
			Pages: int(math.Ceil(float64(res.Total) / float64(limit))),
		},
	}
}

func validID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// ListDocuments returns a page of documents without their content.
// @Summary List documents
// @Tags documents
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset"
// @Param page query int false "page number, used when offset is absent"
// @Success 200 {object} listResponse
// @Router /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, code := pageParams(c)
		if code != "" {
			return writeError(c, fiber.StatusBadRequest, code, "invalid pagination parameter")
		}

		res, err := docSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(newListResponse(res, limit, offset))
	}
}

// UploadDocument ingests one HTML export (multipart/form-data, field file or htmlFile).
// @Summary Upload an HTML export
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "HTML file"
// @Success 201 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Router /documents [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(uploadFields[0])
		for _, field := range uploadFields[1:] {
			if err == nil {
				break
			}
			fh, err = c.FormFile(field)
		}
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			Message:    "File uploaded successfully",
			File:       doc,
			MediaCount: len(doc.Media),
		})
	}
}

// UploadBulk ingests every HTML file of a multi-file upload (field files).
// Other files are staged alongside so the HTML can reference them.
// @Summary Upload several files
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "HTML exports and their media"
// @Success 200 {object} bulkResponse
// @Failure 400 {object} errorPayload
// @Router /documents/bulk [post]
func UploadBulk(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["files"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		headers := form.File["files"]
		files := make([]service.BulkFile, 0, len(headers))
		for _, fh := range headers {
			fh := fh
			files = append(files, service.BulkFile{
				Filename: fh.Filename,
				Size:     fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}

		res, err := docSvc.UploadBulk(c.UserContext(), files)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(bulkResponse{Message: "Bulk upload processed", BulkResult: res})
	}
}

// GetDocument returns a document including its rewritten HTML.
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "document ID"
// @Success 200 {object} model.Document
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// UpdateDocument changes original_name and/or title.
// @Summary Update document metadata
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "document ID"
// @Param patch body model.DocumentPatch true "fields to change"
// @Success 200 {object} model.Document
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [put]
func UpdateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var patch model.DocumentPatch
		if err := c.BodyParser(&patch); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		doc, err := docSvc.Update(c.UserContext(), id, patch)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes the document, its stored file and every media copy.
// @Summary Delete a document
// @Tags documents
// @Param id path string true "document ID"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DocumentMarkdown renders the stored document as Markdown.
// @Summary Export a document as Markdown
// @Tags documents
// @Produce text/markdown
// @Param id path string true "document ID"
// @Success 200 {string} string
// @Failure 404 {object} errorPayload
// @Router /documents/{id}/markdown [get]
func DocumentMarkdown(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		out, err := docSvc.Markdown(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		return c.SendString(out)
	}
}
