package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
)

type Handler struct {
	svc       *Service
	session   *auth.Session
	maxUpload int64
}

func NewHandler(svc *Service, session *auth.Session, maxUpload int64) *Handler {
	return &Handler{svc: svc, session: session, maxUpload: maxUpload}
}

// RegisterRoutes mounts /auth on the API group. Register, login and logout
// are public; loginMW (rate limiting) applies to login only.
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login, loginMW...)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

// registerRequest accepts JSON and multipart form bodies.
type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`

	// patient
	FullName          string `json:"fullName" form:"fullName"`
	Age               int    `json:"age" form:"age"`
	Gender            string `json:"gender" form:"gender"`
	Address           string `json:"address" form:"address"`
	BloodGroup        string `json:"bloodGroup" form:"bloodGroup"`
	EmergencyName     string `json:"emergencyName" form:"emergencyName"`
	EmergencyRelation string `json:"emergencyRelation" form:"emergencyRelation"`
	EmergencyPhone    string `json:"emergencyPhone" form:"emergencyPhone"`

	// doctor and admin
	Name               string `json:"name" form:"name"`
	Specialization     string `json:"specialization" form:"specialization"`
	HospitalName       string `json:"hospitalName" form:"hospitalName"`
	RegistrationNumber string `json:"registrationNumber" form:"registrationNumber"`
	AdminID            string `json:"adminId" form:"adminId"`
	SecretKey          string `json:"secretKey" form:"secretKey"`

	ContactNumber string `json:"contactNumber" form:"contactNumber"`
}

func (r registerRequest) input() RegisterInput {
	in := RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		Role:     auth.Role(r.Role),
	}
	switch in.Role {
	case auth.RolePatient:
		in.Patient = identity.Patient{
			FullName:      r.FullName,
			Age:           r.Age,
			Gender:        r.Gender,
			ContactNumber: r.ContactNumber,
			Address:       r.Address,
			BloodGroup:    r.BloodGroup,
		}
		if r.EmergencyName != "" {
			in.Patient.EmergencyContact = &identity.EmergencyContact{
				Name:     r.EmergencyName,
				Relation: r.EmergencyRelation,
				Phone:    r.EmergencyPhone,
			}
		}
	case auth.RoleDoctor:
		in.Doctor = identity.Doctor{
			Name:               r.Name,
			Specialization:     r.Specialization,
			HospitalName:       r.HospitalName,
			RegistrationNumber: r.RegistrationNumber,
			ContactNumber:      r.ContactNumber,
		}
	case auth.RoleAdmin:
		in.Admin = AdminDetails{
			Name:          r.Name,
			AdminID:       r.AdminID,
			SecretKey:     r.SecretKey,
			ContactNumber: r.ContactNumber,
		}
	}
	return in
}

type tokenResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token,omitempty"`
	Role    auth.Role `json:"role"`
	ID      string    `json:"id"`
}

func (h *Handler) startSession(c echo.Context, status int, acct *Account) error {
	token, err := h.session.Start(c, acct.ID.String(), acct.Role)
	if err != nil {
		return err
	}
	return c.JSON(status, tokenResponse{Success: true, Token: token, Role: acct.Role, ID: acct.ID.String()})
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := req.input()

	var err error
	switch in.Role {
	case auth.RolePatient:
		in.GovernmentID, err = blobstore.FormFile(c, "governmentId", h.maxUpload)
	case auth.RoleDoctor:
		in.MedicalLicense, err = blobstore.FormFile(c, "medicalLicense", h.maxUpload)
	}
	if err != nil {
		return err
	}

	acct, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return h.startSession(c, http.StatusCreated, acct)
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	acct, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, auth.Role(req.Role))
	if err != nil {
		return err
	}
	return h.startSession(c, http.StatusOK, acct)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.AccountID(c)
	if err != nil {
		return err
	}
	acct, profile, err := h.svc.Me(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"user": acct, "profile": profile},
	})
}

// Logout clears the session cookie. Bearer tokens stay valid until expiry.
func (h *Handler) Logout(c echo.Context) error {
	h.session.End(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{}})
}
