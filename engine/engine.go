package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

// Engine evaluates pipelines against the tables of a Source.
type Engine struct {
	src    table.Source
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger stages are reported to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine reading tables from src.
func New(src table.Source, opts ...Option) *Engine {
	e := &Engine{src: src, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a pipeline against src with a default Engine.
func Execute(p *ast.Pipeline, src table.Source) ([]*table.Doc, error) {
	return New(src).Run(p)
}

// Run executes the pipeline's stages left to right over its source table.
// On failure it returns a *StageError and no documents.
func (e *Engine) Run(p *ast.Pipeline) ([]*table.Doc, error) {
	t, err := e.src.Table(p.Source)
	if err != nil {
		return nil, &StageError{Index: -1, Stage: p.Source, Err: &ReferenceError{Kind: "table", Name: p.Source, Err: err}}
	}
	current := make([]*table.Doc, len(t.Rows))
	copy(current, t.Rows)

	for i, op := range p.Stages {
		in := len(current)
		current, err = e.execOp(op, current)
		if err != nil {
			return nil, &StageError{Index: i, Stage: op.Name(), Err: err}
		}
		e.logger.Debug("stage", "source", p.Source, "index", i, "stage", op.Name(), "in", in, "out", len(current))
	}
	return current, nil
}

func (e *Engine) execOp(op ast.Op, docs []*table.Doc) ([]*table.Doc, error) {
	switch o := op.(type) {
	case *ast.LookupOp:
		return e.execLookup(o, docs)
	case *ast.UnwindOp:
		return execUnwind(o, docs)
	case *ast.MatchOp:
		return execMatch(o, docs)
	case *ast.GroupOp:
		return execGroup(o, docs)
	case *ast.SortOp:
		return execSort(o, docs)
	case *ast.LimitOp:
		return execLimit(o, docs), nil
	case *ast.SkipOp:
		return execSkip(o, docs), nil
	case *ast.ProjectOp:
		return execProject(o, docs)
	case *ast.AddFieldsOp:
		return execAddFields(o, docs)
	case *ast.CountOp:
		return execCount(o, docs), nil
	default:
		return nil, fmt.Errorf("unknown operation type %T", op)
	}
}

func execSort(o *ast.SortOp, docs []*table.Doc) ([]*table.Doc, error) {
	paths := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		paths[i] = k.Path
	}
	if err := checkFields(docs, paths...); err != nil {
		return nil, err
	}

	// resolve sort keys once per document
	keys := make([][]table.Value, len(docs))
	for i, d := range docs {
		keys[i] = make([]table.Value, len(o.Keys))
		for j, k := range o.Keys {
			keys[i][j], _ = d.Path(k.Path)
		}
	}
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for j, k := range o.Keys {
			cmp := Compare(ka[j], kb[j])
			if cmp != 0 {
				if k.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})

	out := make([]*table.Doc, len(docs))
	for i, j := range idx {
		out[i] = docs[j]
	}
	return out, nil
}

func execLimit(o *ast.LimitOp, docs []*table.Doc) []*table.Doc {
	n := o.N
	if n > len(docs) {
		n = len(docs)
	}
	return docs[:n]
}

func execSkip(o *ast.SkipOp, docs []*table.Doc) []*table.Doc {
	n := o.N
	if n > len(docs) {
		n = len(docs)
	}
	return docs[n:]
}

func execCount(o *ast.CountOp, docs []*table.Doc) []*table.Doc {
	if len(docs) == 0 {
		return nil
	}
	d := table.NewDoc()
	d.Set(o.Field, table.IntVal(int64(len(docs))))
	return []*table.Doc{d}
}
