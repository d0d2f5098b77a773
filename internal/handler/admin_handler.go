package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/employee_directory/internal/service"
	"github.com/locvowork/employee_directory/internal/service/serviceutils"
)

// Syncer runs one employee synchronization.
type Syncer interface {
	RunSync(ctx context.Context) (*service.SyncReport, error)
}

type AdminHandler struct {
	syncer Syncer
}

func NewAdminHandler(syncer Syncer) *AdminHandler {
	return &AdminHandler{syncer: syncer}
}

// SyncHandler triggers a sync and waits for it. A fetch failure answers 502
// with the partial report.
func (h *AdminHandler) SyncHandler(c echo.Context) error {
	report, err := h.syncer.RunSync(c.Request().Context())
	if err != nil {
		status := serviceutils.StatusOf(err)
		resp := serviceutils.APIResponse{Message: "Sync failed", Data: report, Error: err.Error()}
		return c.JSON(status, resp)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Sync completed", report)
}
