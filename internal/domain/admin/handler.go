package admin

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /admin on a group already behind the Access Guard.
// Every route is admin-only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/pending", h.ListPendingDoctors)
	g.PUT("/doctors/:id/status", h.UpdateDoctorStatus)
	g.PUT("/doctors/:id/approve", h.ApproveDoctor)
	g.PUT("/doctors/:id/reject", h.RejectDoctor)
	g.GET("/users", h.ListUsers)
	g.GET("/stats", h.GetStats)
}

func (h *Handler) listDoctors(c echo.Context, status string) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListDoctors(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	return h.listDoctors(c, c.QueryParam("status"))
}

func (h *Handler) ListPendingDoctors(c echo.Context) error {
	return h.listDoctors(c, string(account.ApprovalPending))
}

// statusRequest accepts {"status": "approved"|"rejected"} or the older
// {"isVerified": bool} form.
type statusRequest struct {
	Status     string `json:"status"`
	IsVerified *bool  `json:"isVerified"`
}

func (r statusRequest) status() account.ApprovalStatus {
	if r.Status != "" {
		return account.ApprovalStatus(r.Status)
	}
	if r.IsVerified != nil {
		if *r.IsVerified {
			return account.ApprovalApproved
		}
		return account.ApprovalRejected
	}
	return ""
}

func (h *Handler) transition(c echo.Context, status account.ApprovalStatus) error {
	reviewer, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found")
	}
	acct, err := h.svc.UpdateDoctorStatus(c.Request().Context(), reviewer, id, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": acct})
}

func (h *Handler) UpdateDoctorStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.transition(c, req.status())
}

func (h *Handler) ApproveDoctor(c echo.Context) error {
	return h.transition(c, account.ApprovalApproved)
}

func (h *Handler) RejectDoctor(c echo.Context) error {
	return h.transition(c, account.ApprovalRejected)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": st})
}
