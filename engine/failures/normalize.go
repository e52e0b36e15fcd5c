package failures

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/recallio/recall-mvp/engine/identity"
)

var (
	guidRe       = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	numberRe     = regexp.MustCompile(`\b\d+\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	lineNumberRe = regexp.MustCompile(`:line\s+\d+`)
)

// maxStackFrames bounds the stack prefix that feeds the signature hash.
const maxStackFrames = 12

// PickTestName returns the best available human-readable test name.
func PickTestName(r TestResult) string {
	switch {
	case strings.TrimSpace(r.AutomatedTestName) != "":
		return r.AutomatedTestName
	case strings.TrimSpace(r.TestCaseTitle) != "":
		return r.TestCaseTitle
	default:
		return "<unknown-test>"
	}
}

// NormalizeMessage strips volatile tokens (GUIDs, numbers, excess
// whitespace) from an error message so the signature is stable across
// runs.
func NormalizeMessage(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := strings.TrimSpace(s)
	text = guidRe.ReplaceAllString(text, "<guid>")
	text = numberRe.ReplaceAllString(text, "<n>")
	return whitespaceRe.ReplaceAllString(text, " ")
}

// NormalizeStack keeps the top frames and strips volatile line numbers,
// producing a stable fingerprint of the stack trace.
func NormalizeStack(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	var frames []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		frames = append(frames, lineNumberRe.ReplaceAllString(line, ":line <n>"))
		if len(frames) == maxStackFrames {
			break
		}
	}
	return strings.Join(frames, "\n")
}

// BuildEmbeddingText builds the text that gets embedded. This defines
// what "similar failure" means: project context plus error plus stack.
func BuildEmbeddingText(r Report, testName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", r.Project)
	fmt.Fprintf(&b, "Definition: %s\n", r.Definition)
	fmt.Fprintf(&b, "Build: %s (%d)\n", r.BuildName, r.BuildID)
	fmt.Fprintf(&b, "Test: %s\n", testName)
	fmt.Fprintf(&b, "Outcome: %s\n", r.Result.Outcome)
	b.WriteString("\n")
	b.WriteString(r.Result.ErrorMessage)
	b.WriteString("\n\n")
	b.WriteString(r.Result.StackTrace)
	b.WriteString("\n")
	return b.String()
}

// PointID derives the per-occurrence id: idempotent per
// build/run/result, so re-publishing the same report overwrites in
// place.
func PointID(r Report) string {
	return identity.Derive(fmt.Sprintf("ado|%s|%d|%d|%d",
		r.Project, r.BuildID, r.TestRunID, r.Result.ID))
}

// SignatureID derives the grouping id from normalised failure content.
// It is stored in the payload, never used as the storage key.
func SignatureID(r Report, testName string) string {
	return identity.Derive(fmt.Sprintf("sig|%s|%s|%s|%s|%s",
		r.Project, r.Definition, testName,
		NormalizeMessage(r.Result.ErrorMessage),
		NormalizeStack(r.Result.StackTrace)))
}
