package clinical

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
	"github.com/Sonali2314/MediCardPlus/pkg/pagination"
)

type Handler struct {
	svc       *Service
	maxUpload int64
}

func NewHandler(svc *Service, maxUpload int64) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// RegisterRoutes mounts the clinical routes on a group already behind the
// Access Guard.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctors := api.Group("/doctors", auth.RequireRole(auth.RoleDoctor))
	doctors.POST("/visits", h.AddVisit)
	doctors.POST("/allergies", h.AddAllergy)
	doctors.GET("/patients/:patientId", h.GetPatientChart)

	patients := api.Group("/patients", auth.RequireRole(auth.RolePatient))
	patients.GET("/medical-history", h.GetMedicalHistory)
	patients.GET("/allergies", h.GetAllergies)

	records := api.Group("/records", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	records.GET("/:id", h.GetRecord)
	records.GET("/visits/:id", h.GetVisit)
	records.GET("/prescriptions/:id", h.GetPrescription)
	records.GET("/reports/:id", h.GetReport)
}

// -- Doctor Handlers --

type visitRequest struct {
	PatientID          string             `json:"patientId"`
	DiseaseName        string             `json:"diseaseName"`
	DiseaseDescription string             `json:"diseaseDescription"`
	VisitDate          string             `json:"visitDate"`
	Symptoms           string             `json:"symptoms"`
	Diagnosis          string             `json:"diagnosis"`
	Notes              string             `json:"notes"`
	FollowUpDate       string             `json:"followUpDate"`
	Prescription       *PrescriptionInput `json:"prescription"`
	LabName            string             `json:"labName"`
	ReportNotes        string             `json:"reportNotes"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("%s must be a date (YYYY-MM-DD)", field)
}

// bindVisit reads a visit from a JSON body, or from a multipart form where
// prescription is a JSON-encoded field and reportFiles/reportTypes are
// parallel lists.
func (h *Handler) bindVisit(c echo.Context) (VisitInput, error) {
	var req visitRequest
	var reports []ReportUpload

	if blobstore.IsMultipart(c) {
		req = visitRequest{
			PatientID:          c.FormValue("patientId"),
			DiseaseName:        c.FormValue("diseaseName"),
			DiseaseDescription: c.FormValue("diseaseDescription"),
			VisitDate:          c.FormValue("visitDate"),
			Symptoms:           c.FormValue("symptoms"),
			Diagnosis:          c.FormValue("diagnosis"),
			Notes:              c.FormValue("notes"),
			FollowUpDate:       c.FormValue("followUpDate"),
			LabName:            c.FormValue("labName"),
			ReportNotes:        c.FormValue("reportNotes"),
		}
		if raw := c.FormValue("prescription"); raw != "" {
			req.Prescription = &PrescriptionInput{}
			if err := json.Unmarshal([]byte(raw), req.Prescription); err != nil {
				return VisitInput{}, apperr.Validation("prescription must be a JSON object")
			}
		}

		files, err := blobstore.FormFiles(c, "reportFiles", h.maxUpload)
		if err != nil {
			return VisitInput{}, err
		}
		params, err := c.FormParams()
		if err != nil {
			return VisitInput{}, apperr.Validation("invalid multipart form")
		}
		types := params["reportTypes"]
		for i, f := range files {
			r := ReportUpload{File: f}
			if i < len(types) {
				r.Type = types[i]
			}
			reports = append(reports, r)
		}
	} else if err := c.Bind(&req); err != nil {
		return VisitInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	visitDate, err := parseDate("visitDate", req.VisitDate)
	if err != nil {
		return VisitInput{}, err
	}
	followUp, err := parseDate("followUpDate", req.FollowUpDate)
	if err != nil {
		return VisitInput{}, err
	}

	return VisitInput{
		PatientCode:        req.PatientID,
		DiseaseName:        req.DiseaseName,
		DiseaseDescription: req.DiseaseDescription,
		VisitDate:          visitDate,
		Symptoms:           req.Symptoms,
		Diagnosis:          req.Diagnosis,
		Notes:              req.Notes,
		FollowUpDate:       followUp,
		Prescription:       req.Prescription,
		Reports:            reports,
		LabName:            req.LabName,
		ReportNotes:        req.ReportNotes,
	}, nil
}

func (h *Handler) AddVisit(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	in, err := h.bindVisit(c)
	if err != nil {
		return err
	}
	result, err := h.svc.AddVisit(c.Request().Context(), accountID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": result})
}

func (h *Handler) AddAllergy(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	var in AllergyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.AddAllergy(c.Request().Context(), accountID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": a})
}

func (h *Handler) GetPatientChart(c echo.Context) error {
	chart, err := h.svc.PatientChart(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": chart})
}

// -- Patient Handlers --

func (h *Handler) GetMedicalHistory(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	records, err := h.svc.MedicalHistory(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.List(records))
}

func (h *Handler) GetAllergies(c echo.Context) error {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	allergies, err := h.svc.PatientAllergies(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.List(allergies))
}

// -- Record Handlers --

func callerAndID(c echo.Context) (uuid.UUID, auth.Role, uuid.UUID, error) {
	accountID, err := auth.AccountID(c)
	if err != nil {
		return uuid.Nil, "", uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, "", uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return accountID, auth.RoleFromContext(c.Request().Context()), id, nil
}

func (h *Handler) GetRecord(c echo.Context) error {
	accountID, role, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), accountID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rec})
}

func (h *Handler) GetVisit(c echo.Context) error {
	accountID, role, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), accountID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": v})
}

func (h *Handler) GetPrescription(c echo.Context) error {
	accountID, role, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), accountID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *Handler) GetReport(c echo.Context) error {
	accountID, role, id, err := callerAndID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetReport(c.Request().Context(), accountID, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": r})
}
