package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/backup"
)

func targetError(c echo.Context, err error) error {
	if errors.Is(err, backup.ErrNotConfigured) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "backup not configured"})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown backup target"})
}

// RunBackup archives the font kits and options to the target named in the path
func (h *Handler) RunBackup(c echo.Context) error {
	target, err := backup.NewTarget(c.Request().Context(), c.Param("target"), h.cfg.Backup)
	if err != nil {
		return targetError(c, err)
	}

	filename, err := h.backups.Run(c.Request().Context(), target)
	if err != nil {
		h.log.Error("backup failed", zap.String("target", target.Name()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "backup failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "backup successful", "file": filename})
}

// ListBackups lists the archives stored on the target named in the path
func (h *Handler) ListBackups(c echo.Context) error {
	target, err := backup.NewTarget(c.Request().Context(), c.Param("target"), h.cfg.Backup)
	if err != nil {
		return targetError(c, err)
	}

	entries, err := target.List(c.Request().Context())
	if err != nil {
		h.log.Error("backup list failed", zap.String("target", target.Name()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
	}
	if entries == nil {
		entries = []backup.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
