package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/packingline/internal/credential"
	"github.com/ppiankov/packingline/internal/lbl"
	"github.com/ppiankov/packingline/internal/order"
	"github.com/ppiankov/packingline/internal/output"
	"github.com/ppiankov/packingline/internal/printjob"
	"github.com/ppiankov/packingline/internal/report"
)

// Describe turns an error from login, order or print handling into a
// message for the operator. Unknown errors are shown as they are.
func Describe(err error) string {
	var (
		missing   *lbl.MissingLinesError
		injection *lbl.InjectionError
		mismatch  *order.MismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &injection):
		if injection.Reason == lbl.ReasonFieldAbsent {
			return fmt.Sprintf("label header has no %q field", lbl.PrefixField)
		}
		return fmt.Sprintf("label record has no field for %q", lbl.PrefixField)
	case errors.As(err, &mismatch):
		return mismatch.Error()
	case errors.Is(err, lbl.ErrInvalidSerial), errors.Is(err, report.ErrInvalidFormat):
		return "serial number must be in format 00-0000-0000"
	case errors.Is(err, lbl.ErrMissing):
		return "label data for this serial is incomplete"
	case errors.Is(err, order.ErrFilesMissing):
		return "work order not found: " + err.Error()
	case errors.Is(err, order.ErrBadNor):
		return "work order file has an unexpected format"
	case errors.Is(err, printjob.ErrNotMapped):
		return "product is not mapped to any label group in the configuration"
	case errors.Is(err, printjob.ErrEmptyLabelFile):
		return "label file of this order is empty"
	case errors.Is(err, report.ErrReportMissing):
		return "test report for this serial does not exist"
	case errors.Is(err, report.ErrTokenMissing):
		return "test report has no My2N token"
	case errors.Is(err, report.ErrEmptyToken):
		return "My2N token in test report is empty"
	case errors.Is(err, output.ErrTriggerDir):
		return "trigger directory does not exist, check paths.triggers"
	case errors.Is(err, output.ErrNoOutputPath), errors.Is(err, printjob.ErrNotConfigured):
		return "output path is not configured"
	case errors.Is(err, output.ErrBadTriggerName):
		return "label file names an invalid trigger: " + err.Error()
	case errors.Is(err, lbl.ErrUnencodable):
		return "operator prefix cannot be written to the label: " + err.Error()
	case errors.Is(err, credential.ErrNoMatch):
		return "invalid password"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
