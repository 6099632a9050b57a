package arbiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/okian/callgen/internal/domain/model"
)

const maxReasonRunes = 100

// Sentinel parse errors.
var (
	ErrNoJSON        = errors.New("no JSON object in reply")
	ErrMissingField  = errors.New("verdict field missing")
	ErrInvalidField  = errors.New("verdict field invalid")
	ErrNoParserMatch = errors.New("no parser accepted the reply")
)

// Parser turns a raw arbiter reply into a verdict.
type Parser struct {
	Name  string
	Parse func(text string, tr model.Transcript) (model.Verdict, error)
}

// FirstOf returns the verdict of the first parser that succeeds and its name.
func FirstOf(text string, tr model.Transcript, parsers ...Parser) (model.Verdict, string, error) {
	errs := []error{ErrNoParserMatch}
	for _, p := range parsers {
		v, err := p.Parse(text, tr)
		if err == nil {
			return v, p.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	return model.Verdict{}, "", errors.Join(errs...)
}

// ParseStructured extracts a JSON object carrying should_terminate,
// terminator and reason from anywhere in text.
func ParseStructured(text string, _ model.Transcript) (model.Verdict, error) {
	candidates := jsonCandidates(text)
	if len(candidates) == 0 {
		return model.Verdict{}, ErrNoJSON
	}
	var firstErr error
	for _, c := range candidates {
		v, err := decodeVerdict(c)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return model.Verdict{}, firstErr
}

// jsonCandidates returns balanced top-level brace fragments, the ones naming
// should_terminate first, followed by the greedy first-to-last brace span.
func jsonCandidates(text string) []string {
	var named, other []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i, r := range text {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"' && depth > 0:
			inString = true
		case r == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case r == '}' && depth > 0:
			depth--
			if depth == 0 {
				frag := text[start : i+1]
				if strings.Contains(frag, "should_terminate") {
					named = append(named, frag)
				} else {
					other = append(other, frag)
				}
			}
		}
	}
	out := append(named, other...)
	if lo, hi := strings.Index(text, "{"), strings.LastIndex(text, "}"); lo >= 0 && hi > lo {
		greedy := text[lo : hi+1]
		if len(out) == 0 || out[0] != greedy {
			out = append(out, greedy)
		}
	}
	return out
}

func decodeVerdict(raw string) (model.Verdict, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %w", ErrNoJSON, err)
	}

	st, ok := fields["should_terminate"]
	if !ok {
		return model.Verdict{}, fmt.Errorf("%w: should_terminate", ErrMissingField)
	}
	terminate, err := asBool(st)
	if err != nil {
		return model.Verdict{}, err
	}

	rawTerm, ok := fields["terminator"].(string)
	if !ok {
		return model.Verdict{}, fmt.Errorf("%w: terminator", ErrMissingField)
	}
	term, ok := NormalizeTerminator(rawTerm)
	if !ok {
		return model.Verdict{}, fmt.Errorf("%w: terminator %q", ErrInvalidField, rawTerm)
	}

	reason, _ := fields["reason"].(string)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Verdict{}, fmt.Errorf("%w: reason", ErrMissingField)
	}

	v := model.Verdict{ShouldTerminate: terminate, Terminator: term, Reason: reason}
	return v, v.Validate()
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: should_terminate %v", ErrInvalidField, v)
}

var terminatorAliases = map[string]model.Terminator{
	"initiator":     model.TerminatorInitiator,
	"caller":        model.TerminatorInitiator,
	"scammer":       model.TerminatorInitiator,
	"left":          model.TerminatorInitiator,
	"responder":     model.TerminatorResponder,
	"receiver":      model.TerminatorResponder,
	"recipient":     model.TerminatorResponder,
	"callee":        model.TerminatorResponder,
	"victim":        model.TerminatorResponder,
	"user":          model.TerminatorResponder,
	"right":         model.TerminatorResponder,
	"natural":       model.TerminatorNatural,
	"none":          model.TerminatorNatural,
	"system":        model.TerminatorNatural,
	"manager":       model.TerminatorNatural,
	"hangup":        model.TerminatorHangup,
	"hangup_signal": model.TerminatorHangup,
	"endcall":       model.TerminatorHangup,
	"end_call":      model.TerminatorHangup,
}

// NormalizeTerminator maps the names an arbiter may use onto a Terminator.
func NormalizeTerminator(s string) (model.Terminator, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	t, ok := terminatorAliases[key]
	return t, ok
}

var (
	negations = []string{
		"not terminate", "not end", "n't end", "n't terminate", "not be terminated",
		"should continue", "can continue", "let it continue", "continue the call", "keep going", "false",
	}
	terminations = []string{
		"terminate", "end the call", "end call", "hang up", "hung up", "goodbye", "bye", "stop",
		"stagnat", "repetit", "repeating", "loop", "circles", "true",
		strings.ToLower(model.EndCallToken), strings.ToLower(model.TerminateToken),
	}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// roleFromText returns the terminator named by the first role word in text.
func roleFromText(lower string) model.Terminator {
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && r != '_' }) {
		if t, ok := terminatorAliases[w]; ok && t != model.TerminatorNatural && t != model.TerminatorHangup {
			return t
		}
	}
	return model.TerminatorNatural
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
