package domain

import (
	"fmt"
	"strings"
)

// SchemaError means a required column is missing or holds values of the
// wrong type
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema error in %s: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("schema error in %s.%s: %s", e.Table, e.Column, e.Message)
}

// EmptyResultError means a transformation produced zero usable rows
type EmptyResultError struct {
	Stage  string
	Reason string
}

func (e EmptyResultError) Error() string {
	return fmt.Sprintf("%s produced no usable rows: %s", e.Stage, e.Reason)
}

type InsufficientCohortsError struct {
	Side     string
	Cohorts  []string
	Required int
	Reason   string
}

func (e InsufficientCohortsError) Error() string {
	msg := fmt.Sprintf("cohort set %s has %d cohort(s) [%s], need at least %d", e.Side, len(e.Cohorts), strings.Join(e.Cohorts, ","), e.Required)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type UnsupportedModelError struct {
	Algorithm string
	Supported []string
}

func (e UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported algorithm %q, expected one of [%s]", e.Algorithm, strings.Join(e.Supported, ", "))
}

// DegenerateBandingError is non-fatal. the caller still receives the
// banding table alongside it, with fewer bands than requested
type DegenerateBandingError struct {
	Requested int
	Produced  int
	Distinct  int
}

func (e DegenerateBandingError) Error() string {
	return fmt.Sprintf("requested %d bands but only %d could be populated (%d distinct scores)", e.Requested, e.Produced, e.Distinct)
}

// LeakageGuardError is raised when a value would be used before it was
// knowable, e.g. a source timestamp after the row's as-of time
type LeakageGuardError struct {
	RowKey   string
	Source   string
	SourceAt string
	AsOf     string
}

func (e LeakageGuardError) Error() string {
	return fmt.Sprintf("leakage guard: row %s uses %s dated %s, after as-of %s", e.RowKey, e.Source, e.SourceAt, e.AsOf)
}
