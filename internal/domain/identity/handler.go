package identity

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the profile routes on a group already behind the
// Access Guard.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	patients := api.Group("/patients", auth.RequireRole(auth.RolePatient))
	patients.GET("/profile", h.GetPatientProfile)
	patients.PUT("/profile", h.UpdatePatientProfile)
	patients.GET("/digital-card", h.GetDigitalCard)
	patients.GET("/:patientId/health-card", h.DownloadHealthCard)

	doctors := api.Group("/doctors", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/profile", h.GetDoctorProfile)
	doctors.PUT("/profile", h.UpdateDoctorProfile)
	doctors.GET("/patients/search", h.SearchPatients)
}

// -- Patient Handlers --

func (h *Handler) GetPatientProfile(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatientByAccount(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *Handler) UpdatePatientProfile(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	var u PatientUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdatePatientProfile(c.Request().Context(), accountID, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *Handler) GetDigitalCard(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	cardPath, err := h.svc.DigitalCard(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"cardPath": cardPath}})
}

func (h *Handler) DownloadHealthCard(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	data, name, err := h.svc.HealthCardPDF(c.Request().Context(), accountID, c.Param("patientId"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return c.Stream(http.StatusOK, "application/pdf", bytes.NewReader(data))
}

// -- Doctor Handlers --

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctorByAccount(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": d})
}

func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	var u DoctorUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.UpdateDoctorProfile(c.Request().Context(), accountID, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": d})
}

func (h *Handler) SearchPatients(c echo.Context) error {
	found, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.List(found))
}
