package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"htmlvault/internal/service"
)

const dateOnly = "2006-01-02"

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// SearchDocuments runs a filtered full-text search.
// @Summary Search documents
// @Tags search
// @Produce json
// @Param search query string false "full-text query"
// @Param media_type query string false "image, video, audio or other"
// @Param start_date query string false "YYYY-MM-DD or RFC 3339"
// @Param end_date query string false "YYYY-MM-DD or RFC 3339"
// @Param sort_field query string false "created_at, updated_at, original_name, size or relevance"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "page number"
// @Param limit query int false "page size"
// @Success 200 {object} listResponse
// @Failure 400 {object} errorPayload
// @Router /search [get]
func SearchDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, code := pageParams(c)
		if code != "" {
			return writeError(c, fiber.StatusBadRequest, code, "invalid pagination parameter")
		}
		start, err := parseDate(c.Query("start_date"), false)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid start_date")
		}
		end, err := parseDate(c.Query("end_date"), true)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid end_date")
		}

		res, err := docSvc.Search(c.UserContext(), service.SearchParams{
			Query:     c.Query("search"),
			MediaType: c.Query("media_type"),
			StartDate: start,
			EndDate:   end,
			SortField: c.Query("sort_field"),
			SortOrder: c.Query("sort_order"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(newListResponse(res, limit, offset))
	}
}

// SearchSuggestions autocompletes document names.
// @Summary Suggest document names
// @Tags search
// @Produce json
// @Param term query string true "at least two characters"
// @Success 200 {object} map[string][]string
// @Router /search/suggestions [get]
func SearchSuggestions(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		suggestions, err := docSvc.Suggestions(c.UserContext(), c.Query("term"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"suggestions": suggestions})
	}
}

// SearchStats returns document and media counts.
// @Summary Collection statistics
// @Tags search
// @Produce json
// @Success 200 {object} model.Stats
// @Router /search/stats [get]
func SearchStats(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := docSvc.Stats(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(stats)
	}
}
