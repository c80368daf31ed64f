// Package summarize implements C6: the summarization orchestrator. It
// resolves a prompt template, dispatches a completion through
// pkg/dispatch, and tracks both synchronous and queued-async summarization
// requests (spec.md §4.6).
package summarize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// recognizedVariables is the closed set accepted by template validation
// (spec.md §6). Adding a variable here requires updating Context too.
var recognizedVariables = map[string]bool{
	"meeting_title":             true,
	"meeting_duration":          true,
	"meeting_date":              true,
	"participants":              true,
	"participant_count":         true,
	"transcription_length":      true,
	"meeting_type":              true,
	"organizer":                 true,
	"summary_length_preference": true,
}

// unresolvedPlaceholder is substituted for any recognized variable whose
// value is missing from the Context at substitution time.
const unresolvedPlaceholder = "[not specified]"

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a stored, pre-validated prompt. Validation happens once at
// creation, not on every substitution, so a stored Template is always safe
// to substitute (spec.md §9).
type Template struct {
	ID         string
	Name       string
	MeetingType string // empty means usable as a fallback default for any type
	Prompt     string
}

// ErrUnknownVariable is returned by NewTemplate when prompt references a
// variable outside the recognized set.
type ErrUnknownVariable struct{ Name string }

func (e *ErrUnknownVariable) Error() string {
	return fmt.Sprintf("summarize: unknown template variable %q", e.Name)
}

// ErrEmptyPrompt is returned by NewTemplate for a blank prompt.
var ErrEmptyPrompt = errors.New("summarize: template prompt is empty")

// ErrUnbalancedBraces is returned by NewTemplate when the prompt's {{ and
// }} counts don't match, which would make a variable reference silently
// unparseable.
var ErrUnbalancedBraces = errors.New("summarize: unbalanced template braces")

// NewTemplate validates prompt — non-empty, balanced braces, every variable
// reference inside the recognized set — and returns a Template ready for
// repeated substitution.
func NewTemplate(id, name, meetingType, prompt string) (*Template, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if strings.Count(prompt, "{{") != strings.Count(prompt, "}}") {
		return nil, ErrUnbalancedBraces
	}
	for _, m := range variablePattern.FindAllStringSubmatch(prompt, -1) {
		if !recognizedVariables[m[1]] {
			return nil, &ErrUnknownVariable{Name: m[1]}
		}
	}
	return &Template{ID: id, Name: name, MeetingType: meetingType, Prompt: prompt}, nil
}

// Context supplies values for the recognized variable set. Any zero-value
// field substitutes as unresolvedPlaceholder.
type Context struct {
	MeetingTitle            string
	MeetingDuration         string
	MeetingDate             string
	Participants            string
	ParticipantCount        string
	TranscriptionLength     string
	MeetingType             string
	Organizer               string
	SummaryLengthPreference string
}

func (c Context) lookup(name string) (string, bool) {
	switch name {
	case "meeting_title":
		return c.MeetingTitle, c.MeetingTitle != ""
	case "meeting_duration":
		return c.MeetingDuration, c.MeetingDuration != ""
	case "meeting_date":
		return c.MeetingDate, c.MeetingDate != ""
	case "participants":
		return c.Participants, c.Participants != ""
	case "participant_count":
		return c.ParticipantCount, c.ParticipantCount != ""
	case "transcription_length":
		return c.TranscriptionLength, c.TranscriptionLength != ""
	case "meeting_type":
		return c.MeetingType, c.MeetingType != ""
	case "organizer":
		return c.Organizer, c.Organizer != ""
	case "summary_length_preference":
		return c.SummaryLengthPreference, c.SummaryLengthPreference != ""
	default:
		return "", false
	}
}

// Substitute performs a single scan over t.Prompt, replacing each
// {{name}} occurrence with ctx's value or unresolvedPlaceholder if unset.
func (t *Template) Substitute(ctx Context) string {
	return variablePattern.ReplaceAllStringFunc(t.Prompt, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		if v, ok := ctx.lookup(name); ok {
			return v
		}
		return unresolvedPlaceholder
	})
}
