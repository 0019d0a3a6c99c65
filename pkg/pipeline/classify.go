package pipeline

import (
	"fmt"
)

// Validator return codes with a fixed meaning.
const (
	CodeReportingPeriodInvalid = -4
	CodeUnknownDeclaration     = -8
	CodeValid                  = 0

	// UnknownError is the code carried by every result that did not come
	// from the validator: busy, interrupted, plugin and transport failures.
	UnknownError = -9
)

const newLine = "\n"

// Category groups validator return codes.
type Category string

const (
	CategoryReportingPeriodInvalid Category = "reporting_period_invalid"
	CategoryUnknownDeclaration     Category = "unknown_declaration_type"
	CategoryValid                  Category = "valid"
	CategoryWarnings               Category = "warnings"
	CategoryErrors                 Category = "errors"
	CategoryFailed                 Category = "failed"
)

// Classification is the verdict for one return code.
type Classification struct {
	Category Category
	Message  string
	Render   bool
}

// NeedsErrorLog reports whether the message for returnCode embeds the
// validator's error log.
func NeedsErrorLog(returnCode int) bool {
	switch {
	case returnCode > CodeValid:
		return true
	case returnCode < CodeValid && returnCode > CodeReportingPeriodInvalid:
		return true
	}
	return false
}

// Classify maps a validator return code to its category and summary
// message. Rendering happens only for non-negative codes. The messages are
// part of the public contract and must stay byte-for-byte stable.
func Classify(returnCode int, typeID string, errorLog string) Classification {
	switch {
	case returnCode == CodeReportingPeriodInvalid:
		return Classification{
			Category: CategoryReportingPeriodInvalid,
			Message:  "Perioada raportare eronata " + quoted(typeID) + " " + newLine,
		}
	case returnCode == CodeUnknownDeclaration:
		return Classification{
			Category: CategoryUnknownDeclaration,
			Message:  unknownDeclarationMessage(typeID),
		}
	case returnCode == CodeValid:
		return Classification{
			Category: CategoryValid,
			Message:  "Validare fara erori " + newLine,
			Render:   true,
		}
	case returnCode > CodeValid:
		return Classification{
			Category: CategoryWarnings,
			Message:  "Atentionari la validare fisier " + newLine + errorLog,
			Render:   true,
		}
	case returnCode > CodeReportingPeriodInvalid:
		return Classification{
			Category: CategoryErrors,
			Message:  "Erori la validare fisier " + newLine + errorLog,
		}
	default:
		return Classification{
			Category: CategoryFailed,
			Message:  fmt.Sprintf("Erori la validare fisier; cod eroare=%d", returnCode) + newLine,
		}
	}
}

func unknownDeclarationMessage(typeID string) string {
	return "Tip declaratie necunoscut " + quoted(typeID) + " " + newLine
}

func quoted(s string) string {
	return "\"" + s + "\""
}
