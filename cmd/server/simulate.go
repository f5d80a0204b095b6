package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ashureev/sonar-hub/internal/catalog"
	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/scanexport"
	"github.com/ashureev/sonar-hub/internal/simulate"
)

type simulateFlags struct {
	sonarType string
	area      string
	frequency float64
	rangeM    float64
	notes     string
	seed      int64
	output    string
}

// simulateCommand runs one simulation offline and prints its JSON export.
func simulateCommand() *cobra.Command {
	var f simulateFlags

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scan simulation and print its JSON export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := simulate.Request{
				SonarType:    f.sonarType,
				AreaName:     f.area,
				Frequency:    f.frequency,
				RangeOrDepth: f.rangeM,
				Notes:        f.notes,
			}
			if cmd.Flags().Changed("seed") {
				seed := f.seed
				req.Seed = &seed
			}

			rec, err := simulate.New().Run(req)
			if err != nil {
				return err
			}
			return writeExport(cmd, rec, f.output)
		},
	}

	cmd.Flags().StringVarP(&f.sonarType, "type", "t", "", "Sonar type, e.g. \"Sea (Side-Scan Sonar type)\" or \"Land (GPR type)\"")
	cmd.Flags().StringVarP(&f.area, "area", "a", "", "Area name")
	cmd.Flags().Float64Var(&f.frequency, "frequency", 0, "Frequency in kHz (0 selects the domain default)")
	cmd.Flags().Float64Var(&f.rangeM, "range", 0, "Range or depth in meters (0 selects the domain default)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes stored on the scan")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed for a reproducible scan")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Directory to write the export to instead of stdout")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// exportCommand prints the JSON export of a built-in scan.
func exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [scan-id]",
		Short: "Print the JSON export of a built-in scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, ok := catalog.NewSessionCatalog().Get(args[0])
			if !ok {
				return fmt.Errorf("unknown scan %q", args[0])
			}
			return writeExport(cmd, rec, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to write the export to instead of stdout")
	return cmd
}

func writeExport(cmd *cobra.Command, rec *domain.ScanRecord, dir string) error {
	data, err := scanexport.Marshal(rec)
	if err != nil {
		return fmt.Errorf("export %s: %w", rec.ScanID, err)
	}
	if dir == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	path := filepath.Join(dir, scanexport.Filename(rec))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
	return err
}
