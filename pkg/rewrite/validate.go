package rewrite

import "namedblock/rewriter-go/pkg/ast"

func (w *walker) exit(e *ast.EarlyExit, depth int) (ast.Node, error) {
	if e.Keyword == nil {
		return nil, newError(MalformedInput, e, "break without keyword")
	}
	if e.Label == nil {
		if entry, ok := w.scopes.ResolveBare(); ok {
			return nil, newError(InvalidBareExit, e, "bare `break` inside block %s would leave its synthetic loop; add a label", entry.Label)
		}
		value, err := w.value(e.Value, depth)
		if err != nil {
			return nil, err
		}
		return ast.NewEarlyExit(e.Keyword, nil, value), nil
	}

	res, ok := w.scopes.Resolve(e.Label.Text)
	if !ok {
		return nil, newError(UnresolvedLabel, e.Label, "unknown label %s", e.Label.Text)
	}
	value, err := w.value(e.Value, depth)
	if err != nil {
		return nil, err
	}
	if !res.Entry.Active {
		return ast.NewEarlyExit(e.Keyword, e.Label, value), nil
	}
	if res.CrossedClosure && w.opts.Closures == ClosuresStrict {
		return nil, newError(ExitAcrossClosure, e, "break %s crosses a closure boundary", e.Label.Text)
	}
	return emitExit(e, res.Entry, value), nil
}

func (w *walker) flow(f *ast.LoopFlow, depth int) (ast.Node, error) {
	if f.Kind == ast.FlowBreak {
		return w.exit(ast.NewEarlyExit(f.Keyword, f.Label, nil), depth)
	}
	if f.Label == nil {
		if entry, ok := w.scopes.ResolveBare(); ok {
			return nil, newError(InvalidBareExit, f, "bare `continue` inside block %s would restart its synthetic loop; add a label", entry.Label)
		}
		return f, nil
	}
	res, ok := w.scopes.Resolve(f.Label.Text)
	if !ok {
		return nil, newError(UnresolvedLabel, f.Label, "unknown label %s", f.Label.Text)
	}
	if res.Entry.Active {
		return nil, newError(InvalidSelfContinue, f, "continue %s targets a labeled block, which runs once", f.Label.Text)
	}
	return f, nil
}
