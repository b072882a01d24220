package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"analyticshub/internal/models"
	"analyticshub/internal/seeder"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the warehouse tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.requireSQLite(); err != nil {
				return err
			}
			if err := d.Warehouse.DBManager.MigrateDatabase(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Migrations completed")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var start, end string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the warehouse with generated demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.requireSQLite(); err != nil {
				return err
			}
			rng, err := d.Parser.ParseRange(start, end)
			if err != nil {
				return err
			}
			if err := d.Warehouse.DBManager.MigrateDatabase(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			s := seeder.NewSeeder(d.Warehouse.Store, d.Logger, seed)
			if err := s.Run(ctx, rng); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Seeded %d days (%s)\n", rng.Days(), rng)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "365daysAgo", "first day to generate")
	cmd.Flags().StringVar(&end, "end", "yesterday", "last day to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed; equal seeds generate equal data")
	return cmd
}

func newImportCmd() *cobra.Command {
	var familyName string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import warehouse rows from a JSON or YAML file",
		Long: `Import writes rows exported from the discontinued provider into the
warehouse. FILE holds a list of objects keyed by warehouse column names,
for example:

  [{"date": "2023-03-01", "page_path": "/", "pageviews": 120, "sessions": 80}]

Daily rows replace an existing row for the same date. Use "-" to read
from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := models.ParseFamily(familyName)
			if err != nil {
				return err
			}
			rows, err := readRows(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.requireSQLite(); err != nil {
				return err
			}
			n, err := d.Warehouse.Store.Import(family, rows)
			if err != nil {
				return err
			}
			d.Logger.Info("Import finished", slog.String("family", string(family)), slog.String("file", args[0]))
			fmt.Fprintf(os.Stderr, "Imported %d %s rows\n", n, family)
			return nil
		},
	}

	cmd.Flags().StringVar(&familyName, "family", "", "metric family: daily|pages|traffic|devices|geo")
	_ = cmd.MarkFlagRequired("family")
	return cmd
}

// readRows decodes a list of rows. Files ending in .yaml or .yml are YAML,
// everything else JSON.
func readRows(path string, stdin io.Reader) ([]models.Row, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	rows := make([]models.Row, len(raw))
	for i, r := range raw {
		rows[i] = models.Row(r)
	}
	return rows, nil
}

func init() {
	rootCmd.AddCommand(newMigrateCmd(), newSeedCmd(), newImportCmd())
}
