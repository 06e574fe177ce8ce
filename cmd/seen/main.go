package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pbaille/seen/internal/api"
	"github.com/pbaille/seen/internal/config"
	"github.com/pbaille/seen/internal/domain"
	"github.com/pbaille/seen/internal/logger"
	"github.com/pbaille/seen/internal/seen"
	"github.com/pbaille/seen/internal/store"
)

var (
	cfg      *config.Config
	dbPath   string
	driver   string
	logLevel string
)

func main() {
	c, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = c

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "seen",
		Short:        "Registry of already seen items",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "database path")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", cfg.DBDriver, "storage driver (sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(forgetCmd())
	rootCmd.AddCommand(forgetAllCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// openRegistry opens the configured store; the caller closes it
func openRegistry(logOut io.Writer) (*seen.Registry, store.Store, error) {
	if driver == store.DriverSQLite {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	s, err := store.Open(driver, dbPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(logOut, "seen", logLevel)
	return seen.New(s, log), s, nil
}

// parseLocal reads the tri-state --local flag: empty means both scopes
func parseLocal(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --local value %q: want true or false", raw)
	}
	return &b, nil
}

// parseFields turns name=value pairs into field values
func parseFields(pairs []string) (domain.FieldValues, error) {
	fields := domain.FieldValues{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: want name=value", p)
		}
		fields[strings.TrimSpace(name)] = value
	}
	return fields, nil
}

func addCmd() *cobra.Command {
	var (
		fieldPairs []string
		task       string
		reason     string
		local      bool
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Mark an item as seen",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(fieldPairs)
			if err != nil {
				return err
			}

			reg, s, err := openRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			entry, err := reg.Create(cmd.Context(), domain.NewEntry{
				Title:  strings.Join(args, " "),
				Task:   task,
				Reason: reason,
				Local:  local,
				Fields: fields,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added seen entry: %d\n", entry.ID)
			for _, f := range entry.Fields {
				fmt.Fprintf(out, "  %s = %s\n", f.Field, truncate(f.Value, 70))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fieldPairs, "field", "f", nil, "field as name=value (repeatable)")
	cmd.Flags().StringVar(&task, "task", "", "originating task name (default "+domain.DefaultTask+")")
	cmd.Flags().StringVar(&reason, "reason", "", "why the item is marked seen")
	cmd.Flags().BoolVar(&local, "local", false, "limit the entry to its task")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		local    string
		page     int
		pageSize int
		sortBy   string
		order    string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "search [value]",
		Short: "Search seen entries by field value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLocal(local)
			if err != nil {
				return err
			}
			key, err := domain.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			ord, err := domain.ParseOrder(order)
			if err != nil {
				return err
			}

			reg, s, err := openRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			filter := domain.Filter{Local: loc}
			if len(args) == 1 {
				filter.Value = args[0]
			}

			result, err := reg.Page(cmd.Context(), filter, seen.PageRequest{
				Page:     page,
				PageSize: pageSize,
				SortBy:   key,
				Order:    ord,
			})
			if err != nil {
				return err
			}

			return printPage(cmd.OutOrStdout(), result, output)
		},
	}

	cmd.Flags().StringVar(&local, "local", "", "filter by locality (true or false)")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&pageSize, "max", "n", cfg.DefaultPageSize, "entries per page")
	cmd.Flags().StringVar(&sortBy, "sort-by", string(domain.SortByAdded), "sort by title, task, added, local or id")
	cmd.Flags().StringVar(&order, "order", string(domain.OrderDesc), "sort order (asc or desc)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")
	return cmd
}

func printPage(w io.Writer, p *seen.Page, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		return yaml.NewEncoder(w).Encode(p)
	case "text":
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	if p.TotalCount == 0 {
		fmt.Fprintln(w, "No matching seen entries found.")
		return nil
	}

	for _, e := range p.Entries {
		scope := "global"
		if e.Local {
			scope = "local"
		}
		fmt.Fprintf(w, "%6d  %s  %-6s  %-16s  %s\n",
			e.ID, e.Added.Format("2006-01-02 15:04"), scope, truncate(e.Task, 16), truncate(e.Title, 50))
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d entries)\n", p.PageNumber, p.TotalPages, p.TotalCount)
	return nil
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show seen entry details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %s", args[0])
			}

			reg, s, err := openRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			entry, err := reg.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:     %d\n", entry.ID)
			fmt.Fprintf(out, "Title:  %s\n", entry.Title)
			fmt.Fprintf(out, "Task:   %s\n", entry.Task)
			fmt.Fprintf(out, "Added:  %s\n", entry.Added.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Local:  %t\n", entry.Local)
			if entry.Reason != "" {
				fmt.Fprintf(out, "Reason: %s\n", entry.Reason)
			}

			fmt.Fprintf(out, "\nFields:\n")
			for _, f := range entry.Fields {
				fmt.Fprintf(out, "  - %s: %s\n", f.Field, f.Value)
			}
			return nil
		},
	}
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [id]",
		Short: "Delete a seen entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %s", args[0])
			}

			reg, s, err := openRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := reg.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot seen entry %d\n", id)
			return nil
		},
	}
}

func forgetAllCmd() *cobra.Command {
	var (
		local string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "forget-all [value]",
		Short: "Delete every seen entry matching a value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLocal(local)
			if err != nil {
				return err
			}

			reg, s, err := openRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			filter := domain.Filter{Local: loc}
			if len(args) == 1 {
				filter.Value = args[0]
			}

			if !yes {
				matches, err := reg.Search(cmd.Context(), filter)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d seen entries match; rerun with --yes to delete them\n", len(matches))
				return nil
			}

			n, err := reg.DeleteBulk(cmd.Context(), filter)
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d seen entries\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&local, "local", "", "filter by locality (true or false)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "actually delete")
	return cmd
}

// truncate shortens s to at most max runes for table output
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return strings.Repeat(".", max)
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, s, err := openRegistry(os.Stdout)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.New(reg, logger.New("seen-api", logLevel), api.Options{
				DefaultPageSize: cfg.DefaultPageSize,
				MaxPageSize:     cfg.MaxPageSize,
				ShutdownTimeout: cfg.ShutdownTimeout,
			})
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", cfg.HTTPAddr, "server address")
	return cmd
}
