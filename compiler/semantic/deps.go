package semantic

import (
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"

	"github.com/tabxdata/tabx/compiler/ast"
	"github.com/tabxdata/tabx/schema"
)

// Order computes a dependency order over the calculated fields of one data
// source.  parsed maps field name to its syntax tree; fields that failed to
// parse are simply absent and contribute no edges.  The returned slice is a
// valid topological order of the keys of parsed: every field appears after
// everything it references.  Reference cycles are returned as one
// *CycleError per cycle, combined with multierr; fields not on any cycle
// still appear in the order so the rest of the data source proceeds.
func Order(sch *schema.Schema, parsed map[string]ast.Expr) ([]string, error) {
	// Resolve which referenced names are calculated fields, matching by
	// name or caption the way the source tool does.
	canonical := make(map[string]string)
	for i := range sch.Calcs {
		c := &sch.Calcs[i]
		canonical[strings.ToLower(c.Name)] = c.Name
		if c.Caption != "" {
			canonical[strings.ToLower(c.Caption)] = c.Name
		}
	}
	deps := make(map[string][]string)
	for name, e := range parsed {
		var edges []string
		for _, ref := range ast.Fields(e) {
			if target, ok := canonical[strings.ToLower(ref)]; ok && target != name {
				if _, known := parsed[target]; known {
					edges = append(edges, target)
				}
			}
		}
		slices.Sort(edges)
		deps[name] = edges
	}

	// Kahn's algorithm with sorted ready set for deterministic output.
	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string)
	for name, edges := range deps {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, d := range edges {
			indegree[name]++
			dependents[d] = append(dependents[d], name)
		}
	}
	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)
	var order []string
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		var woke []string
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				woke = append(woke, dep)
			}
		}
		slices.Sort(woke)
		ready = append(ready, woke...)
	}
	if len(order) == len(deps) {
		return order, nil
	}

	// Anything not ordered sits on or downstream of a cycle.  Report each
	// distinct cycle with exactly its members.
	var errs error
	for _, cycle := range findCycles(deps, order) {
		errs = multierr.Append(errs, &CycleError{Members: cycle})
	}
	return order, errs
}

// findCycles walks the unordered remainder of the graph and extracts each
// cycle once, in reference order.
func findCycles(deps map[string][]string, ordered []string) [][]string {
	done := make(map[string]bool)
	for _, name := range ordered {
		done[name] = true
	}
	var cycles [][]string
	onCycle := make(map[string]bool)
	var names []string
	for name := range deps {
		if !done[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, start := range names {
		if onCycle[start] {
			continue
		}
		// Follow unresolved edges until a node repeats; the walk from the
		// repeat onward is the cycle.
		var path []string
		index := make(map[string]int)
		cur := start
		for {
			if at, seen := index[cur]; seen {
				cycle := append([]string(nil), path[at:]...)
				isNew := false
				for _, m := range cycle {
					if !onCycle[m] {
						onCycle[m] = true
						isNew = true
					}
				}
				if isNew {
					cycles = append(cycles, cycle)
				}
				break
			}
			index[cur] = len(path)
			path = append(path, cur)
			next := ""
			for _, d := range deps[cur] {
				if !done[d] {
					next = d
					break
				}
			}
			if next == "" {
				break
			}
			cur = next
		}
	}
	return cycles
}
