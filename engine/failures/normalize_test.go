package failures

import (
	"fmt"
	"strings"
	"testing"
)

func TestPickTestName(t *testing.T) {
	cases := []struct {
		automated string
		title     string
		want      string
	}{
		{"Suite.TestLogin", "Login works", "Suite.TestLogin"},
		{"", "Login works", "Login works"},
		{"  ", "Login works", "Login works"},
		{"", "", "<unknown-test>"},
	}
	for _, tc := range cases {
		r := TestResult{AutomatedTestName: tc.automated, TestCaseTitle: tc.title}
		if got := PickTestName(r); got != tc.want {
			t.Errorf("PickTestName(%q, %q) = %q, want %q", tc.automated, tc.title, got, tc.want)
		}
	}
}

func TestNormalizeMessage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"expected 5 but got 7", "expected <n> but got <n>"},
		{
			"order 7f8a1b2c-3d4e-5f60-7182-93a4b5c6d7e8 not found",
			"order <guid> not found",
		},
		{"too   much\n\twhitespace", "too much whitespace"},
	}
	for _, tc := range cases {
		if got := NormalizeMessage(tc.in); got != tc.want {
			t.Errorf("NormalizeMessage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeStackLineNumbers(t *testing.T) {
	in := "at Orders.Place() in Orders.cs:line 42\nat Program.Main() in Program.cs:line 7"
	want := "at Orders.Place() in Orders.cs:line <n>\nat Program.Main() in Program.cs:line <n>"
	if got := NormalizeStack(in); got != want {
		t.Errorf("NormalizeStack:\n got %q\nwant %q", got, want)
	}
}

func TestNormalizeStackCapsFrames(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("at Frame%d()", i))
	}
	got := NormalizeStack(strings.Join(lines, "\n"))
	if n := len(strings.Split(got, "\n")); n != 12 {
		t.Fatalf("expected 12 frames, got %d", n)
	}
	if !strings.HasPrefix(got, "at Frame0()") {
		t.Errorf("top frame lost: %q", got)
	}
}

func TestNormalizeStackSkipsBlankLines(t *testing.T) {
	got := NormalizeStack("at A()\n\n\n  at B()  \n")
	if got != "at A()\nat B()" {
		t.Errorf("got %q", got)
	}
}

func TestSignatureStableAcrossVolatileTokens(t *testing.T) {
	base := Report{
		Project:    "web",
		Definition: "ci-main",
		Result: TestResult{
			AutomatedTestName: "Suite.TestCheckout",
			ErrorMessage:      "order 7f8a1b2c-3d4e-5f60-7182-93a4b5c6d7e8 failed after 3 retries",
			StackTrace:        "at Checkout.Run() in Checkout.cs:line 42",
		},
	}
	other := base
	other.Result.ErrorMessage = "order aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee failed after 9 retries"
	other.Result.StackTrace = "at Checkout.Run() in Checkout.cs:line 108"

	name := PickTestName(base.Result)
	if SignatureID(base, name) != SignatureID(other, name) {
		t.Fatal("volatile tokens changed the signature")
	}
}

func TestSignatureDistinguishesTests(t *testing.T) {
	r := Report{Project: "web", Definition: "ci-main", Result: TestResult{ErrorMessage: "boom"}}
	if SignatureID(r, "Suite.TestA") == SignatureID(r, "Suite.TestB") {
		t.Fatal("different tests produced the same signature")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	r := Report{Project: "web", BuildID: 100, TestRunID: 7, Result: TestResult{ID: 3}}
	if PointID(r) != PointID(r) {
		t.Fatal("point id not deterministic")
	}

	other := r
	other.Result.ID = 4
	if PointID(r) == PointID(other) {
		t.Fatal("different results produced the same point id")
	}
}

func TestBuildEmbeddingTextContents(t *testing.T) {
	r := Report{
		Project:    "web",
		Definition: "ci-main",
		BuildID:    100,
		BuildName:  "20260831.1",
		Result: TestResult{
			Outcome:      "Failed",
			ErrorMessage: "assertion failed",
			StackTrace:   "at Suite.Test()",
		},
	}
	text := BuildEmbeddingText(r, "Suite.Test")
	for _, want := range []string{"Project: web", "Definition: ci-main", "Test: Suite.Test", "Outcome: Failed", "assertion failed", "at Suite.Test()"} {
		if !strings.Contains(text, want) {
			t.Errorf("embedding text missing %q:\n%s", want, text)
		}
	}
}
