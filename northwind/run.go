package northwind

import (
	"fmt"
	"log/slog"

	"github.com/trilochan-behera-dev/database-query/engine"
	"github.com/trilochan-behera-dev/database-query/parser"
	"github.com/trilochan-behera-dev/database-query/table"
)

// Runner answers reports against a Source.
type Runner struct {
	src    table.Source
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(src table.Source, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{src: src, logger: logger}
}

// Run executes the named report. A report with a dependency first runs the
// report it depends on to completion and binds the extracted scalar into
// its own query before building it.
func (r *Runner) Run(name string) ([]*table.Doc, error) {
	return r.run(name, nil)
}

func (r *Runner) run(name string, chain []string) ([]*table.Doc, error) {
	rep, ok := Find(name)
	if !ok {
		return nil, fmt.Errorf("unknown report %q", name)
	}
	for _, c := range chain {
		if c == name {
			return nil, fmt.Errorf("report %q depends on itself", name)
		}
	}

	params := parser.Params{}
	if dep := rep.Depends; dep != nil {
		docs, err := r.run(dep.Report, append(chain, name))
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", name, err)
		}
		v, err := engine.Scalar(docs, dep.Field)
		if err != nil {
			return nil, fmt.Errorf("report %s: %s.%s: %w", name, dep.Report, dep.Field, err)
		}
		r.logger.Debug("bound parameter", "report", name, "param", dep.Param, "value", v.AsString())
		params[dep.Param] = v
	}

	p, err := parser.ParseWithParams(rep.Query, params)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	docs, err := engine.New(r.src, engine.WithLogger(r.logger.With("report", name))).Run(p)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	r.logger.Info("report done", "report", name, "rows", len(docs))
	return docs, nil
}
