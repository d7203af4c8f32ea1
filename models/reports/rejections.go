package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type RejectionReportRow struct {
	ApplicationId   int             `json:"application_id"`
	PetId           int             `json:"pet_id"`
	PetName         *string         `json:"pet_name"`
	AdoptionFee     decimal.Decimal `json:"adoption_fee"`
	ApplicantName   string          `json:"applicant_name"`
	ApplicantEmail  string          `json:"applicant_email"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	DecidedAt       time.Time       `json:"decided_at"`
	RejectionReason string          `json:"rejection_reason"`
	ShelterNotes    *string         `json:"shelter_notes"`
}

func getRejectionReport(ctx context.Context) ([]*RejectionReportRow, error) {

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	sql := `
SELECT
    ar.application_id,
    ar.pet_id,
    pets.name AS pet_name,
    pets.adoption_fee,
    ar.data_full_name AS applicant_name,
    ar.data_email AS applicant_email,
    ar.submitted_at,
    ar.decided_at,
    ar.rejection_reason,
    ar.shelter_notes
FROM
    archived_rejections ar
    LEFT JOIN pets ON pets.id = ar.pet_id
WHERE
    ar.shelter_id = ?
ORDER BY
    ar.decided_at DESC;
`

	var records []*RejectionReportRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, shelterId).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// BuildRejectionsXLSX renders the shelter's rejection archive as a workbook.
// The caller streams the file to the response.
func BuildRejectionsXLSX(ctx context.Context) (*excelize.File, error) {

	data, err := getRejectionReport(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "ApplicationId")
	f.SetCellValue("Sheet1", "B1", "PetName")
	f.SetCellValue("Sheet1", "C1", "AdoptionFee")
	f.SetCellValue("Sheet1", "D1", "ApplicantName")
	f.SetCellValue("Sheet1", "E1", "ApplicantEmail")
	f.SetCellValue("Sheet1", "F1", "SubmittedAt")
	f.SetCellValue("Sheet1", "G1", "DecidedAt")
	f.SetCellValue("Sheet1", "H1", "RejectionReason")
	f.SetCellValue("Sheet1", "I1", "ShelterNotes")

	// Add data
	for i, d := range data {
		f.SetCellValue("Sheet1", "A"+fmt.Sprint(i+2), d.ApplicationId)
		f.SetCellValue("Sheet1", "B"+fmt.Sprint(i+2), utils.DereferencePtr(d.PetName, ""))
		f.SetCellValue("Sheet1", "C"+fmt.Sprint(i+2), d.AdoptionFee.String())
		f.SetCellValue("Sheet1", "D"+fmt.Sprint(i+2), d.ApplicantName)
		f.SetCellValue("Sheet1", "E"+fmt.Sprint(i+2), d.ApplicantEmail)
		f.SetCellValue("Sheet1", "F"+fmt.Sprint(i+2), d.SubmittedAt.Format(time.RFC3339))
		f.SetCellValue("Sheet1", "G"+fmt.Sprint(i+2), d.DecidedAt.Format(time.RFC3339))
		f.SetCellValue("Sheet1", "H"+fmt.Sprint(i+2), d.RejectionReason)
		f.SetCellValue("Sheet1", "I"+fmt.Sprint(i+2), utils.DereferencePtr(d.ShelterNotes, ""))
	}

	return f, nil
}
