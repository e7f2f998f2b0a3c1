package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/csscache"
	authmw "hlstype/internal/middleware"
	"hlstype/internal/sanitize"
)

var contextCapability = map[csscache.Context]authmw.Capability{
	csscache.Admin:    authmw.ManageOptions,
	csscache.Editor:   authmw.EditPosts,
	csscache.Frontend: authmw.EditPosts,
}

type pageRequest struct {
	Content string `json:"content"`
}

// ContextCSS returns the combined stylesheet for the :context parameter.
// admin and editor get every kit; frontend only the kits declaring one of
// the comma separated families query values.
func (h *Handler) ContextCSS(c echo.Context) error {
	cc, ok := csscache.ParseContext(c.Param("context"))
	if !ok {
		return apiError(c, http.StatusNotFound, "css_context_not_found", "Unknown stylesheet context")
	}
	if !authmw.Can(authmw.Role(c), contextCapability[cc]) {
		return authmw.Forbidden(c)
	}

	ctx := c.Request().Context()
	var families []string
	if cc == csscache.Frontend {
		cfg, err := h.settings.Get(ctx)
		if err != nil {
			h.log.Error("failed to load settings", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load settings"})
		}
		if !cfg.FrontendCSSEnabled() {
			return cssResponse(c, "")
		}
		families = sanitize.Texts(strings.Split(c.QueryParam("families"), ","))
	}

	out, err := h.css.CombinedCSS(ctx, cc, families)
	if err != nil {
		h.log.Error("failed to build combined css", zap.String("context", string(cc)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build stylesheet"})
	}
	return cssResponse(c, out)
}

// PageCSS returns the stylesheet a rendered page needs: only the kits whose
// families the page references, and nothing when it has no styled headline
// or frontend CSS is disabled.
func (h *Handler) PageCSS(c echo.Context) error {
	pageID := sanitize.Key(c.Param("id"))
	if pageID == "" {
		return apiError(c, http.StatusBadRequest, "missing_params", "Missing required parameters")
	}

	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "missing_params", "Missing required parameters")
	}

	ctx := c.Request().Context()
	cfg, err := h.settings.Get(ctx)
	if err != nil {
		h.log.Error("failed to load settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load settings"})
	}
	if !cfg.FrontendCSSEnabled() {
		return cssResponse(c, "")
	}

	out, info, err := h.css.PageCSS(ctx, pageID, req.Content)
	if err != nil {
		h.log.Error("failed to build page css", zap.String("page", pageID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build stylesheet"})
	}
	h.log.Debug("page css",
		zap.String("page", pageID),
		zap.Bool("styled", info.HasStyled),
		zap.Strings("families", info.UsedFamilies),
	)
	return cssResponse(c, out)
}
