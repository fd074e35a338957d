// Package inspect scans caller-supplied free text for injection patterns.
// The engine stores fields like request purposes verbatim; downstream
// consumers may interpolate them into queries, so attempts are surfaced on
// the audit stream even though the mutation itself is never rejected.
package inspect

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding describes a detected injection pattern in a free-text field.
type Finding struct {
	Field       string // name of the field that was checked
	Value       string // the offending value
	Fingerprint string // libinjection fingerprint for pattern analysis
}

// CheckFreeText runs libinjection over a single field value. Returns nil when
// the value is clean.
func CheckFreeText(field, value string) *Finding {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &Finding{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFields scans a set of named free-text fields and returns a finding for
// each one that matches an injection pattern.
func CheckFields(fields map[string]string) []*Finding {
	var findings []*Finding
	for field, value := range fields {
		if f := CheckFreeText(field, value); f != nil {
			findings = append(findings, f)
		}
	}
	return findings
}
