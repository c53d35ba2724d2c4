package ast

// Walk traverses e in depth-first pre-order, calling visit for every node.
// If visit returns false the children of that node are skipped.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch e := e.(type) {
	case *UnaryExpr:
		Walk(e.Operand, visit)
	case *BinaryExpr:
		Walk(e.LHS, visit)
		Walk(e.RHS, visit)
	case *Call:
		for _, arg := range e.Args {
			Walk(arg, visit)
		}
	case *If:
		for _, b := range e.Branches {
			Walk(b.Cond, visit)
			Walk(b.Then, visit)
		}
		if e.Else != nil {
			Walk(e.Else, visit)
		}
	case *Case:
		if e.Input != nil {
			Walk(e.Input, visit)
		}
		for _, w := range e.Whens {
			Walk(w.Cond, visit)
			Walk(w.Then, visit)
		}
		if e.Else != nil {
			Walk(e.Else, visit)
		}
	case *LOD:
		for _, d := range e.Dims {
			Walk(d, visit)
		}
		Walk(e.Expr, visit)
	}
}

// Fields returns the names of all fields referenced by e, in first-seen
// order without duplicates.
func Fields(e Expr) []string {
	var names []string
	seen := make(map[string]struct{})
	Walk(e, func(e Expr) bool {
		if f, ok := e.(*FieldRef); ok {
			if _, dup := seen[f.Name]; !dup {
				seen[f.Name] = struct{}{}
				names = append(names, f.Name)
			}
		}
		return true
	})
	return names
}
