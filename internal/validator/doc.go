// Package validator validates request bodies with go-playground/validator.
//
// Field names in errors use the JSON path of the offending field, so a bad
// node in a run is reported as messages[2].nodeName:
//
//	if err := validator.Validate(run); err != nil {
//	    // err is a validator.ValidationErrors
//	}
//
// The validator instance is package-level and safe for concurrent use.
package validator
