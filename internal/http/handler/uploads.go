package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"htmlvault/internal/storage"
)

const presignExpiry = 15 * time.Minute

// ServeUpload serves a managed storage object at /uploads/:name.
// Object stores that can presign answer with a redirect; local files are streamed.
func ServeUpload(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("name")
		ctx := c.UserContext()

		if u, err := store.PresignGet(ctx, key, presignExpiry); err == nil && strings.HasPrefix(u, "http") {
			return c.Redirect(u, fiber.StatusTemporaryRedirect)
		}

		rc, info, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		// Keys are never reused, so the content behind a URL never changes.
		c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
		return c.SendStream(rc, int(info.Size))
	}
}
