package types

import (
	"strings"

	"github.com/xtxerr/eegstore/internal/errors"
)

// PatientRule derives the owning patient from a recording identifier.
type PatientRule interface {
	PatientID(recordingID string) (string, error)
}

// PatientRuleFunc adapts a function to PatientRule.
type PatientRuleFunc func(recordingID string) (string, error)

// PatientID implements PatientRule.
func (f PatientRuleFunc) PatientID(recordingID string) (string, error) {
	return f(recordingID)
}

// PrefixRule takes the leading token up to the first Separator, so
// "chb01_03.edf" belongs to "chb01". A recording id without the separator
// is its own patient id.
type PrefixRule struct {
	Separator string
}

// DefaultPatientRule splits on "_".
var DefaultPatientRule = PrefixRule{Separator: "_"}

// PatientID implements PatientRule.
func (r PrefixRule) PatientID(recordingID string) (string, error) {
	sep := r.Separator
	if sep == "" {
		sep = "_"
	}
	patient, _, _ := strings.Cut(recordingID, sep)
	if patient == "" {
		return "", errors.Wrapf(errors.ErrInvalidName,
			"recording '%s' has an empty patient token", recordingID)
	}
	return patient, nil
}
