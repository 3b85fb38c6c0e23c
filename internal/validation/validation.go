// Package validation provides centralized input validation for identifiers
// arriving from producers and consumers.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xtxerr/eegstore/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for identifiers.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
	AllowSpaces  bool
	AllowSymbols bool // any other printable, non-separator rune
}

// RecordingRules returns the rules for recording and patient identifiers.
// Dots are allowed for file-derived ids such as "chb01_03.edf".
func RecordingRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ChannelRules returns the rules for channel labels. Montage labels use a
// wide alphabet ("FP1-F7", "EEG Fz-Cz", "A1+A2"), so only structure is checked.
func ChannelRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    64,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
		AllowSpaces:  true,
		AllowSymbols: true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required: %w", rules.MinLength, errors.ErrInvalidName)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed: %w", rules.MaxLength, errors.ErrInvalidName)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..': %w", errors.ErrInvalidName)
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.': %w", errors.ErrInvalidName)
	}

	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name cannot have leading or trailing spaces: %w", errors.ErrInvalidName)
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d: %w", i, errors.ErrInvalidName)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d: %w", i, errors.ErrInvalidName)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d: %w", r, i, errors.ErrInvalidName)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	case ' ':
		return rules.AllowSpaces
	}
	return rules.AllowSymbols && unicode.IsPrint(r)
}

// ValidateRecordingID validates a recording identifier.
func ValidateRecordingID(id string) error {
	if err := ValidateName(id, RecordingRules()); err != nil {
		return fmt.Errorf("recording_id: %w", err)
	}
	return nil
}

// ValidatePatientID validates a patient identifier.
func ValidatePatientID(id string) error {
	if err := ValidateName(id, RecordingRules()); err != nil {
		return fmt.Errorf("patient_id: %w", err)
	}
	return nil
}

// ValidateChannel validates one channel label.
func ValidateChannel(channel string) error {
	return ValidateName(channel, ChannelRules())
}

// =============================================================================
// Channel Lists
// =============================================================================

// ValidateChannels checks every label and rejects duplicates.
func ValidateChannels(channels []string) error {
	seen := make(map[string]struct{}, len(channels))
	for i, ch := range channels {
		if err := ValidateChannel(ch); err != nil {
			return fmt.Errorf("channels[%d]: %w", i, err)
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("channels[%d]: duplicate channel '%s': %w", i, ch, errors.ErrInvalidName)
		}
		seen[ch] = struct{}{}
	}
	return nil
}

// ParseChannelList parses a comma-separated channel filter such as
// "FP1-F7,C3-P3". Empty input yields nil (all channels). Repeated labels
// are collapsed.
func ParseChannelList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		ch := strings.TrimSpace(p)
		if ch == "" {
			continue
		}
		if err := ValidateChannel(ch); err != nil {
			return nil, fmt.Errorf("channel filter: %w", err)
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
