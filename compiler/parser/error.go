package parser

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Error is a parse error localized to one calculation.  Pos and End are byte
// offsets into the source text.  Expected lists the token classes that would
// have been legal at Pos, when known.
type Error struct {
	Msg      string   `json:"error"`
	Pos      int      `json:"pos"`
	End      int      `json:"end"`
	Token    string   `json:"token,omitempty"`
	Expected []string `json:"expected,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Token != "" {
		fmt.Fprintf(&b, " at %s", e.Token)
	}
	fmt.Fprintf(&b, " (offset %d)", e.Pos)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, ": expected %s", strings.Join(e.Expected, " or "))
	}
	return b.String()
}

func (e *Error) Message() string { return e.Msg }

// maxSuggestDistance bounds how far a did-you-mean candidate may be from
// the misspelled name.
const maxSuggestDistance = 3

// suggest returns the candidate closest to name by edit distance, or ""
// when nothing is close enough to be a plausible typo.
func suggest(name string, candidates []string) string {
	var best string
	bestDist := maxSuggestDistance + 1
	upper := strings.ToUpper(name)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(upper, strings.ToUpper(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func unknownFuncError(name string, pos, end int) *Error {
	msg := fmt.Sprintf("unknown function %q", name)
	if s := suggest(name, FuncNames()); s != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", s)
	}
	return &Error{Msg: msg, Pos: pos, End: end, Token: fmt.Sprintf("%q", name)}
}
