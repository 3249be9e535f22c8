package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trilochan-behera-dev/database-query/engine"
	"github.com/trilochan-behera-dev/database-query/northwind"
	"github.com/trilochan-behera-dev/database-query/parser"
	"github.com/trilochan-behera-dev/database-query/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dbq",
		Short:         "Run aggregation pipelines over the Northwind tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./dbq.yaml)")
	pf.String("data", "data", "directory of table files (.csv, .json, .jsonl, .avro, .parquet)")
	pf.String("sqlite", "", "read tables from this SQLite database instead of --data")
	pf.StringP("format", "f", "table", "output format: table, json or csv")
	pf.String("log-level", "WARN", "log level: DEBUG, INFO, WARN or ERROR")
	pf.String("log-format", "text", "log format: text or json")

	root.AddCommand(newListCmd(), newRunCmd(root), newExecCmd(root))
	return root
}

// session is the per-invocation state shared by the commands that read data.
type session struct {
	cfg    *config
	logger *slog.Logger
	src    table.Source
	close  func() error
}

func openSession(root, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(root.PersistentFlags())
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr()).With("run_id", uuid.NewString())
	logger.Debug("starting", "command", cmd.Name(), "args", cmd.Flags().Args())

	src, closeFn, err := openSource(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, src: src, close: closeFn}, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTableWriter(cmd.OutOrStdout(), []string{"report", "question"})
			for _, r := range northwind.Reports {
				tw.Append([]string{r.Name, r.Question})
			}
			tw.Render()
			return nil
		},
	}
}

func newRunCmd(root *cobra.Command) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run <report>... | --all",
		Short: "Run one or more reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if all {
				names = nil
				for _, r := range northwind.Reports {
					names = append(names, r.Name)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("name a report or pass --all (see dbq list)")
			}
			for _, n := range names {
				if _, ok := northwind.Find(n); !ok {
					return fmt.Errorf("unknown report %q", n)
				}
			}

			s, err := openSession(root, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			runner := northwind.NewRunner(s.src, s.logger)
			out := cmd.OutOrStdout()
			for i, n := range names {
				docs, err := runner.Run(n)
				if err != nil {
					return err
				}
				if s.cfg.Format == "table" {
					if i > 0 {
						fmt.Fprintln(out)
					}
					r, _ := northwind.Find(n)
					fmt.Fprintf(out, "%s: %s\n", r.Name, r.Question)
				}
				if err := writeDocs(out, s.cfg.Format, docs); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every report")
	return cmd
}

func newExecCmd(root *cobra.Command) *cobra.Command {
	var rawParams []string
	cmd := &cobra.Command{
		Use:   "exec '<query>'",
		Short: "Run an ad hoc query such as 'db.orders.aggregate([...])'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}
			p, err := parser.ParseWithParams(args[0], params)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}

			s, err := openSession(root, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			docs, err := engine.New(s.src, engine.WithLogger(s.logger)).Run(p)
			if err != nil {
				return err
			}
			return writeDocs(cmd.OutOrStdout(), s.cfg.Format, docs)
		},
	}
	cmd.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "bind $$name in the query: name=value (repeatable)")
	return cmd
}

// parseParams reads name=value pairs. Values that look like numbers or
// booleans are typed accordingly; "null" binds null.
func parseParams(raw []string) (parser.Params, error) {
	params := parser.Params{}
	for _, kv := range raw {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected name=value", kv)
		}
		params[name] = paramValue(val)
	}
	return params, nil
}

func paramValue(s string) table.Value {
	if s == "null" {
		return table.Null()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntVal(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return table.FloatVal(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return table.BoolVal(b)
	}
	return table.StrVal(s)
}
