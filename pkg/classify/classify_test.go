package classify

import (
	"errors"
	"testing"

	"dicomconvert/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// TestClassifyRules verifies each exclusion rule and its precedence
func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name   string
		header *models.Header
		want   models.Reason
	}{
		{
			name:   "plain single frame",
			header: &models.Header{FileName: "patient0.dcm", NumberOfFrames: intPtr(1)},
			want:   models.ReasonOK,
		},
		{
			name:   "no optional tags",
			header: &models.Header{FileName: "patient1.dcm"},
			want:   models.ReasonOK,
		},
		{
			name:   "motion marker lower case",
			header: &models.Header{FileName: "a.dcm", ImageType: []string{"ORIGINAL", "PRIMARY", "motion"}},
			want:   models.ReasonMotion,
		},
		{
			name:   "multi frame",
			header: &models.Header{FileName: "a.dcm", NumberOfFrames: intPtr(5)},
			want:   models.ReasonMultiFrame,
		},
		{
			name: "motion wins over multi frame",
			header: &models.Header{
				FileName:       "a.dcm",
				ImageType:      []string{"DERIVED", "MOTION"},
				NumberOfFrames: intPtr(30),
			},
			want: models.ReasonMotion,
		},
		{
			name:   "digitized video conversion type",
			header: &models.Header{FileName: "a.dcm", ConversionType: strPtr("DV")},
			want:   models.ReasonVideoSOPClass,
		},
		{
			name:   "workstation conversion type",
			header: &models.Header{FileName: "a.dcm", ConversionType: strPtr("WSD")},
			want:   models.ReasonOK,
		},
		{
			name:   "video photographic SOP class",
			header: &models.Header{FileName: "a.dcm", SOPClassUID: "1.2.840.10008.5.1.4.1.1.77.1.4.1"},
			want:   models.ReasonVideoSOPClass,
		},
		{
			name:   "ultrasound image SOP class",
			header: &models.Header{FileName: "a.dcm", SOPClassUID: "1.2.840.10008.5.1.4.1.1.6.1"},
			want:   models.ReasonOK,
		},
		{
			name:   "structured report prefix",
			header: &models.Header{FileName: "SR000123.dcm"},
			want:   models.ReasonStructuredReport,
		},
		{
			name:   "multi frame wins over structured report name",
			header: &models.Header{FileName: "SR1.dcm", NumberOfFrames: intPtr(2)},
			want:   models.ReasonMultiFrame,
		},
		{
			name:   "nil header",
			header: nil,
			want:   models.ReasonUnreadableHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.header)
			if got.Reason != tt.want {
				t.Errorf("Expected reason %q, got %q (detail %q)", tt.want, got.Reason, got.Detail)
			}
			if got.Convertible != (tt.want == models.ReasonOK) {
				t.Errorf("Expected convertible=%v for reason %q", tt.want == models.ReasonOK, got.Reason)
			}
		})
	}
}

func TestByName(t *testing.T) {
	if _, rejected := ByName("SR_report.dcm"); !rejected {
		t.Error("Expected SR-prefixed name to be rejected")
	}
	if _, rejected := ByName("patientSR.dcm"); rejected {
		t.Error("Expected SR in the middle of a name to be accepted")
	}
	if _, rejected := ByName("sr1.dcm"); rejected {
		t.Error("Expected the prefix check to be case sensitive")
	}
}

func TestUnreadable(t *testing.T) {
	v := Unreadable(errors.New("truncated preamble"))
	if v.Convertible {
		t.Error("Unreadable verdict must not be convertible")
	}
	if v.Reason != models.ReasonUnreadableHeader {
		t.Errorf("Expected %q, got %q", models.ReasonUnreadableHeader, v.Reason)
	}
	if v.Detail != "truncated preamble" {
		t.Errorf("Expected error text in detail, got %q", v.Detail)
	}
}
