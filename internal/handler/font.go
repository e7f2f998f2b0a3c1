package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/fontkit"
	"hlstype/internal/ingest"
	authmw "hlstype/internal/middleware"
	"hlstype/internal/sanitize"
)

// ListFonts returns every installed font kit
func (h *Handler) ListFonts(c echo.Context) error {
	kits, err := h.kits.List(c.Request().Context())
	if err != nil {
		h.log.Error("failed to list font kits", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load fonts"})
	}
	return c.JSON(http.StatusOK, kits)
}

// UploadFontKit ingests a webfont kit ZIP and records it
func (h *Handler) UploadFontKit(c echo.Context) error {
	file, err := c.FormFile("zip_file")
	name := sanitize.Text(c.FormValue("name"))
	if err != nil || name == "" {
		return apiError(c, http.StatusBadRequest, "missing_data", "Missing required font data")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		return apiError(c, http.StatusBadRequest, "invalid_file", "Invalid file type")
	}
	if ext != ".zip" {
		return apiError(c, http.StatusBadRequest, "invalid_file", "Please upload a valid ZIP file")
	}

	maxSize := h.cfg.Upload.MaxArchiveSize
	tooLarge := fmt.Sprintf("File size exceeds maximum allowed (%d MB)", maxSize>>20)
	if file.Size > maxSize {
		return apiError(c, http.StatusBadRequest, "file_too_large", tooLarge)
	}

	src, err := file.Open()
	if err != nil {
		return apiError(c, http.StatusBadRequest, "upload_error", "File upload error")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return apiError(c, http.StatusBadRequest, "upload_error", "File upload error")
	}
	if int64(len(data)) > maxSize {
		return apiError(c, http.StatusBadRequest, "file_too_large", tooLarge)
	}
	if !filetype.Is(data, "zip") {
		return apiError(c, http.StatusBadRequest, "invalid_file", "Please upload a valid ZIP file")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.cfg.Upload.Timeout)
	defer cancel()

	start := time.Now()
	kit, err := h.pipeline.Ingest(ctx, data, file.Filename, name)
	if err != nil {
		ierr, ok := ingest.AsError(err)
		if !ok {
			ierr = &ingest.Error{Kind: ingest.KindUnclassified, Err: err}
		}
		h.metrics.RecordIngestion(ierr.Code(), time.Since(start).Seconds())
		return apiError(c, ingestStatus(ierr.Kind), ierr.Code(), ierr.Message())
	}
	h.metrics.RecordIngestion("ok", time.Since(start).Seconds())

	if err := h.kits.Add(ctx, kit); err != nil {
		h.log.Error("failed to save font kit", zap.String("id", kit.ID), zap.Error(err))
		// Clean up the extracted kit if the record cannot be stored
		if rerr := h.fs.RemoveAll(kit.UploadPath); rerr != nil {
			h.log.Warn("failed to remove unsaved kit", zap.String("path", kit.UploadPath), zap.Error(rerr))
		}
		return apiError(c, http.StatusInternalServerError, "save_failed", "Failed to save font kit")
	}

	h.log.Info("font kit uploaded",
		zap.String("id", kit.ID),
		zap.String("user", authmw.Username(c)),
		zap.Int("files", kit.FileCount),
	)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"font":    kit,
	})
}

// ingestStatus maps archive problems to 400 and server side failures to 500.
func ingestStatus(kind ingest.Kind) int {
	switch kind {
	case ingest.KindMkdir, ingest.KindCSSRead, ingest.KindUnclassified:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// GetFontKit returns one font kit record
func (h *Handler) GetFontKit(c echo.Context) error {
	kit, err := h.kits.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, fontkit.ErrNotFound) {
		return apiError(c, http.StatusNotFound, "font_not_found", "Font not found")
	}
	if err != nil {
		h.log.Error("failed to load font kit", zap.String("id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load font"})
	}
	return c.JSON(http.StatusOK, kit)
}

// DeleteFontKit removes a font kit and its files
func (h *Handler) DeleteFontKit(c echo.Context) error {
	err := h.kits.Remove(c.Request().Context(), c.Param("id"))
	if errors.Is(err, fontkit.ErrNotFound) {
		return apiError(c, http.StatusNotFound, "font_not_found", "Font not found")
	}
	if err != nil {
		h.log.Error("failed to delete font kit", zap.String("id", c.Param("id")), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "delete_failed", "Failed to delete font")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
