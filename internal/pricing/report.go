package pricing

import (
	"errors"
	"strings"

	"github.com/nutriforum/pricing-backend/internal/models"
)

var (
	ErrInvalidReportTransition = errors.New("invalid report status transition")
	ErrResolutionNotesRequired = errors.New("resolution notes are required to resolve a report")
)

var reportTransitions = map[models.ReportStatus][]models.ReportStatus{
	models.ReportStatusOpen:     {models.ReportStatusInReview, models.ReportStatusResolved},
	models.ReportStatusInReview: {models.ReportStatusResolved},
	models.ReportStatusResolved: nil,
}

// CanTransition reports whether a report may move from one status to another.
// Status only moves forward and resolved is terminal.
func CanTransition(from, to models.ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested status change together with its notes.
func ValidateTransition(from, to models.ReportStatus, notes string) error {
	if !CanTransition(from, to) {
		return ErrInvalidReportTransition
	}
	if to == models.ReportStatusResolved && strings.TrimSpace(notes) == "" {
		return ErrResolutionNotesRequired
	}
	return nil
}
