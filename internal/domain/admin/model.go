package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
)

// Placeholders shown for doctor accounts whose profile is missing.
const (
	unknownName    = "Unknown"
	notSpecified   = "Not specified"
	notProvided    = "Not provided"
	missingLicense = "#"
)

// DoctorListing is a doctor account joined with its profile, as shown to
// admins reviewing applications.
type DoctorListing struct {
	ID                 uuid.UUID              `json:"id"`
	Email              string                 `json:"email"`
	DoctorID           string                 `json:"doctorId,omitempty"`
	Name               string                 `json:"name"`
	Specialization     string                 `json:"specialization"`
	HospitalName       string                 `json:"hospitalName"`
	RegistrationNumber string                 `json:"registrationNumber"`
	ContactNumber      string                 `json:"contactNumber"`
	MedicalLicense     string                 `json:"medicalLicense"`
	ApprovalStatus     account.ApprovalStatus `json:"approvalStatus"`
	IsVerified         bool                   `json:"isVerified"`
	ReviewedAt         *time.Time             `json:"reviewedAt,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
}

func (d *DoctorListing) fillPlaceholders() {
	if d.Name == "" {
		d.Name = unknownName
	}
	if d.Specialization == "" {
		d.Specialization = notSpecified
	}
	if d.HospitalName == "" {
		d.HospitalName = notSpecified
	}
	if d.RegistrationNumber == "" {
		d.RegistrationNumber = notProvided
	}
	if d.ContactNumber == "" {
		d.ContactNumber = notProvided
	}
	if d.MedicalLicense == "" {
		d.MedicalLicense = missingLicense
	}
}

type Stats struct {
	TotalUsers      int `json:"totalUsers"`
	TotalPatients   int `json:"totalPatients"`
	TotalDoctors    int `json:"totalDoctors"`
	TotalAdmins     int `json:"totalAdmins"`
	ApprovedDoctors int `json:"approvedDoctors"`
	PendingDoctors  int `json:"pendingDoctors"`
	RejectedDoctors int `json:"rejectedDoctors"`
}
