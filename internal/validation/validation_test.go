package validation

import (
	"strings"
	"testing"

	"github.com/xtxerr/eegstore/internal/errors"
)

func TestValidateRecordingID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"edf file", "chb01_03.edf", false},
		{"with hyphen", "p7-night", false},
		{"numbers", "123", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"hidden", ".hidden", true},
		{"slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"control char", "a\x00b", true},
		{"space", "a b", true},
		{"too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordingID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecordingID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidName) {
				t.Errorf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bipolar", "FP1-F7", false},
		{"duplicate suffix", "T8-P8-0", false},
		{"with space", "EEG Fz-Cz", false},
		{"reference", "A1+A2", false},
		{"empty", "", true},
		{"leading space", " Fz", true},
		{"slash", "Fz/Cz", true},
		{"tab", "F\tz", true},
		{"too long", strings.Repeat("C", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChannel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChannels(t *testing.T) {
	if err := ValidateChannels([]string{"A", "B", "C"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateChannels([]string{"A", "B", "A"})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if !strings.Contains(err.Error(), "channels[2]") {
		t.Errorf("expected index in error, got %v", err)
	}
}

func TestParseChannelList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
		wantErr  bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"A", []string{"A"}, false},
		{"A,B", []string{"A", "B"}, false},
		{" A , B ,", []string{"A", "B"}, false},
		{"A,A,B", []string{"A", "B"}, false},
		{",,", nil, false},
		{"A,B/C", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseChannelList(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChannelList(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if strings.Join(got, "|") != strings.Join(tt.expected, "|") || (got == nil) != (tt.expected == nil) {
			t.Errorf("ParseChannelList(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
