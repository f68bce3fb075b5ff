// Package reasons is the decline reason registry. Declines must cite a
// registered, active reason; some reasons additionally require free-text
// notes. Validation happens before any row is touched.
package reasons

import (
	"errors"
	"strings"
)

// Reason is a single registered decline reason.
type Reason struct {
	Code          string `json:"code"`
	Label         string `json:"label"`
	RequiresNotes bool   `json:"requiresNotes"`
	Active        bool   `json:"-"`
	SortOrder     int    `json:"-"`
}

// Validation failures for a decline choice. These map to the
// invalid-decline outcome, not to transport errors.
var (
	ErrUnknownReason = errors.New("unknown decline reason")
	ErrReasonRetired = errors.New("decline reason is no longer active")
	ErrNotesRequired = errors.New("decline reason requires notes")
)

// ValidateChoice checks a reason against the supplied notes.
// A nil reason means the code was not found in the registry.
func ValidateChoice(reason *Reason, notes string) error {
	if reason == nil {
		return ErrUnknownReason
	}
	if !reason.Active {
		return ErrReasonRetired
	}
	if reason.RequiresNotes && strings.TrimSpace(notes) == "" {
		return ErrNotesRequired
	}
	return nil
}
