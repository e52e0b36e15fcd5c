// Package failures indexes CI test-failure reports: each failure is
// embedded and stored with a deterministic per-occurrence id, plus a
// second signature id that groups recurring failures across builds.
package failures

import "time"

// TestResult is one failed test inside a report.
type TestResult struct {
	ID                int64      `json:"id"`
	AutomatedTestName string     `json:"automated_test_name,omitempty"`
	TestCaseTitle     string     `json:"test_case_title,omitempty"`
	Outcome           string     `json:"outcome,omitempty"`
	ComputerName      string     `json:"computer_name,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StackTrace        string     `json:"stack_trace,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Report is a failed-test occurrence as published by the CI integration.
type Report struct {
	Project    string     `json:"project"`
	Definition string     `json:"definition"`
	BuildID    int64      `json:"build_id"`
	BuildName  string     `json:"build_name"`
	TestRunID  int64      `json:"test_run_id"`
	Result     TestResult `json:"result"`
}

// Result reports the ids an indexed failure received.
type Result struct {
	PointID     string `json:"point_id"`
	SignatureID string `json:"signature_id"`
}
