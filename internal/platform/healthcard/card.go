// Package healthcard renders the wallet-sized digital health card given to
// every patient: an A6 landscape PDF with the patient's key details and a QR
// code linking to their profile in the web client.
package healthcard

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

// Card holds the patient fields printed on the card.
type Card struct {
	PatientID         string
	FullName          string
	Age               int
	Gender            string
	BloodGroup        string
	EmergencyName     string
	EmergencyRelation string
	EmergencyPhone    string
}

type Generator struct {
	clientURL string
	now       func() time.Time
}

func NewGenerator(clientURL string) *Generator {
	return &Generator{clientURL: strings.TrimRight(clientURL, "/"), now: time.Now}
}

// QRTarget is the URL encoded in the card's QR code.
func (g *Generator) QRTarget(patientID string) string {
	return fmt.Sprintf("%s/patient/%s", g.clientURL, patientID)
}

// FileName is the download name for a patient's card.
func FileName(patientID string) string {
	return "health-card-" + patientID + ".pdf"
}

const qrSizePx = 256

func (g *Generator) Render(card Card) ([]byte, error) {
	if card.PatientID == "" {
		return nil, fmt.Errorf("patient id is required")
	}

	qr, err := qrcode.Encode(g.QRTarget(card.PatientID), qrcode.Medium, qrSizePx)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	pdf := fpdf.New("L", "mm", "A6", "")
	pdf.SetTitle("Digital Health Card "+card.PatientID, true)
	pdf.SetMargins(10, 8, 10)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w, h := pdf.GetPageSize()
	pdf.SetLineWidth(0.4)
	pdf.Rect(4, 4, w-8, h-8, "D")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, "DIGITAL HEALTH CARD", "", 1, "C", false, 0, "")
	pdf.Line(4, pdf.GetY()+1, w-4, pdf.GetY()+1)
	pdf.Ln(4)

	blood := card.BloodGroup
	if blood == "" {
		blood = "Unknown"
	}
	rows := [][2]string{
		{"Name:", card.FullName},
		{"Patient ID:", card.PatientID},
		{"Age/Gender:", strconv.Itoa(card.Age) + " / " + card.Gender},
		{"Blood Group:", blood},
	}
	if card.EmergencyName != "" {
		contact := card.EmergencyName
		if card.EmergencyRelation != "" {
			contact += " (" + card.EmergencyRelation + ")"
		}
		rows = append(rows, [2]string{"Emergency:", contact})
		if card.EmergencyPhone != "" {
			rows = append(rows, [2]string{"", card.EmergencyPhone})
		}
	} else {
		rows = append(rows, [2]string{"Emergency:", "Not specified"})
	}

	const labelW, valueW, rowH = 28.0, 62.0, 7.0
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(labelW, rowH, tr(r[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(valueW, rowH, tr(r[1]), "", 1, "L", false, 0, "")
	}

	const qrMM = 40.0
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", w-qrMM-12, 22, qrMM, qrMM, false, opts, 0, "")

	pdf.SetY(h - 18)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 4, "Scan QR code to access complete medical history", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, "Generated on "+g.now().Format("02 Jan 2006"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render health card: %w", err)
	}
	return buf.Bytes(), nil
}
