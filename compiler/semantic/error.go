package semantic

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Error is a semantic error localized to one calculated field.
type Error struct {
	Field string `json:"field"`
	Msg   string `json:"error"`
	Pos   int    `json:"pos"`
	End   int    `json:"end"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("[%s]: %s", e.Field, e.Msg)
}

func (e *Error) Message() string { return e.Msg }

// CycleError reports a reference cycle among calculated fields.  Members
// holds every field on the cycle in reference order.
type CycleError struct {
	Members []string `json:"members"`
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("dependency cycle among calculated fields: ")
	for i, m := range e.Members {
		if i > 0 {
			b.WriteString(" -> ")
		}
		fmt.Fprintf(&b, "[%s]", m)
	}
	if len(e.Members) > 0 {
		fmt.Fprintf(&b, " -> [%s]", e.Members[0])
	}
	return b.String()
}

const maxSuggestDistance = 3

func suggest(name string, candidates []string) string {
	var best string
	bestDist := maxSuggestDistance + 1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
