package healthcard

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_QRTarget(t *testing.T) {
	g := NewGenerator("https://medicard.example/")
	assert.Equal(t, "https://medicard.example/patient/P-1A2B3C4D", g.QRTarget("P-1A2B3C4D"))
}

func TestGenerator_Render(t *testing.T) {
	g := NewGenerator("http://localhost:3000")
	g.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	out, err := g.Render(Card{
		PatientID:         "P-1A2B3C4D",
		FullName:          "Asha Verma",
		Age:               34,
		Gender:            "Female",
		BloodGroup:        "O+",
		EmergencyName:     "Ravi Verma",
		EmergencyRelation: "Brother",
		EmergencyPhone:    "+91 98765 43210",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "expected a PDF document")
	assert.Greater(t, len(out), 1000)
}

func TestGenerator_RenderMinimal(t *testing.T) {
	out, err := NewGenerator("http://localhost:3000").Render(Card{PatientID: "P-00000000", FullName: "José Núñez"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestGenerator_RequiresPatientID(t *testing.T) {
	_, err := NewGenerator("http://localhost:3000").Render(Card{FullName: "No Id"})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "health-card-P-1A2B3C4D.pdf", FileName("P-1A2B3C4D"))
}
