package summarize

import (
	"errors"
	"testing"
)

func TestNewTemplateRejectsUnknownVariable(t *testing.T) {
	_, err := NewTemplate("t1", "T", "", "Summarize {{meeting_title}} for {{audience}}.")
	var unknown *ErrUnknownVariable
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownVariable, got %v", err)
	}
	if unknown.Name != "audience" {
		t.Errorf("expected the offending name, got %q", unknown.Name)
	}
}

func TestNewTemplateRejectsEmptyPrompt(t *testing.T) {
	if _, err := NewTemplate("t1", "T", "", "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestNewTemplateRejectsUnbalancedBraces(t *testing.T) {
	if _, err := NewTemplate("t1", "T", "", "Summarize {{meeting_title}."); !errors.Is(err, ErrUnbalancedBraces) {
		t.Fatalf("expected ErrUnbalancedBraces, got %v", err)
	}
}

func TestSubstituteFillsKnownVariables(t *testing.T) {
	tmpl, err := NewTemplate("t1", "T", "", "{{meeting_title}} on {{meeting_date}} with {{participants}}.")
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}

	got := tmpl.Substitute(Context{
		MeetingTitle: "Q3 Planning",
		MeetingDate:  "2026-07-30",
		Participants: "Avery, Jordan",
	})
	want := "Q3 Planning on 2026-07-30 with Avery, Jordan."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteReplacesUnresolvedWithPlaceholder(t *testing.T) {
	tmpl, err := NewTemplate("t1", "T", "", "Organized by {{organizer}}.")
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}
	got := tmpl.Substitute(Context{})
	if got != "Organized by [not specified]." {
		t.Errorf("got %q", got)
	}
}
