// Package classify decides from header metadata alone whether a DICOM file
// holds a single static frame that the conversion pipeline can handle.
package classify

import (
	"strconv"
	"strings"

	"dicomconvert/internal/models"
)

// StructuredReportPrefix marks structured-report exports by file name.
// This is an archive naming convention, not a DICOM rule.
const StructuredReportPrefix = "SR"

// DigitizedVideo is the Conversion Type code for digitized video
const DigitizedVideo = "DV"

// videoSOPClasses lists the storage SOP classes that always carry video
var videoSOPClasses = map[string]struct{}{
	"1.2.840.10008.5.1.4.1.1.77.1.1.1": {}, // Video Endoscopic Image Storage
	"1.2.840.10008.5.1.4.1.1.77.1.2.1": {}, // Video Microscopic Image Storage
	"1.2.840.10008.5.1.4.1.1.77.1.4.1": {}, // Video Photographic Image Storage
}

// IsVideoSOPClass reports whether uid is one of the video storage classes
func IsVideoSOPClass(uid string) bool {
	_, ok := videoSOPClasses[strings.TrimSpace(uid)]
	return ok
}

// Classify applies the exclusion rules in order and returns the first match.
//
// Rules:
//  1. an Image Type component equal to MOTION (any case)
//  2. Number of Frames greater than 1
//  3. Conversion Type DV or a video storage SOP class
//  4. a file name starting with the structured-report prefix
//
// A nil header is treated as unreadable.
func Classify(h *models.Header) models.Verdict {
	if h == nil {
		return models.Verdict{Reason: models.ReasonUnreadableHeader, Detail: "no header"}
	}

	for _, component := range h.ImageType {
		if strings.EqualFold(strings.TrimSpace(component), "MOTION") {
			return models.Verdict{
				Reason: models.ReasonMotion,
				Detail: strings.Join(h.ImageType, `\`),
			}
		}
	}

	if h.NumberOfFrames != nil && *h.NumberOfFrames > 1 {
		return models.Verdict{
			Reason: models.ReasonMultiFrame,
			Detail: strconv.Itoa(*h.NumberOfFrames) + " frames",
		}
	}

	if h.ConversionType != nil && strings.TrimSpace(*h.ConversionType) == DigitizedVideo {
		return models.Verdict{
			Reason: models.ReasonVideoSOPClass,
			Detail: "conversion type " + DigitizedVideo,
		}
	}
	if IsVideoSOPClass(h.SOPClassUID) {
		return models.Verdict{
			Reason: models.ReasonVideoSOPClass,
			Detail: "SOP class " + h.SOPClassUID,
		}
	}

	if v, rejected := ByName(h.FileName); rejected {
		return v
	}

	return models.Verdict{Convertible: true, Reason: models.ReasonOK}
}

// ByName is the file-name pre-filter run before any header is read.
// It reports true when the name alone rules the file out.
func ByName(name string) (models.Verdict, bool) {
	if strings.HasPrefix(name, StructuredReportPrefix) {
		return models.Verdict{
			Reason: models.ReasonStructuredReport,
			Detail: name,
		}, true
	}
	return models.Verdict{Convertible: true, Reason: models.ReasonOK}, false
}

// Unreadable builds the verdict for a header that failed to parse
func Unreadable(err error) models.Verdict {
	v := models.Verdict{Reason: models.ReasonUnreadableHeader}
	if err != nil {
		v.Detail = err.Error()
	}
	return v
}
