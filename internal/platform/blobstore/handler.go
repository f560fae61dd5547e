package blobstore

import (
	"errors"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

// BlobHandler serves stored files. Admins and doctors may read any file;
// patients only the files they own.
type BlobHandler struct {
	store BlobStore
}

func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// RegisterRoutes mounts blob routes on a group already behind the Access
// Guard.
func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	files := g.Group("/files", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	files.GET("/:id", h.handleDownload)
	files.GET("/:id/metadata", h.handleGetMetadata)
}

func (h *BlobHandler) authorize(c echo.Context, meta *BlobMetadata) error {
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) == auth.RolePatient && meta.OwnerID != auth.UserIDFromContext(ctx) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to access this file")
	}
	return nil
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return err
	}
	defer rc.Close()

	if err := h.authorize(c, meta); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": meta.FileName}))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return err
	}
	if err := h.authorize(c, meta); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": meta})
}

// URL returns the API path that serves the blob with the given id.
func URL(id string) string {
	if id == "" {
		return ""
	}
	return "/api/files/" + id
}
