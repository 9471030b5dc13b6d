package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cmmoran/cxxffigen/internal/report"
	"github.com/cmmoran/cxxffigen/pkg/action/snapshot"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

func init() {
	rootCmd.AddCommand(NewSnapshotCommand())
}

func NewSnapshotCommand() *cobra.Command {
	var manifestPath string

	// snapshotCmd represents the cxxffigen snapshot command
	var snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "manage binding snapshots",
		Long:  "Record generation runs in a manifest and compare their exports",
	}
	snapshotCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", ".cxxffigen/manifest.yaml", "path to the snapshot manifest")

	snapshotCmd.AddCommand(newSnapshotRecordCommand(&manifestPath))
	snapshotCmd.AddCommand(newSnapshotListCommand(&manifestPath))
	snapshotCmd.AddCommand(newSnapshotDiffCommand(&manifestPath))

	return snapshotCmd
}

func newSnapshotRecordCommand(manifestPath *string) *cobra.Command {
	var (
		flags   = &bindgen.Options{}
		imp     = &importFlags{}
		version string
	)
	var recordCmd = &cobra.Command{
		Use:   "record",
		Short: "generate bindings and record the run",
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := loadOptions(c, flags, imp)
			if err != nil {
				report.Error(c.ErrOrStderr(), err)
				return err
			}
			start := time.Now()
			res, err := snapshot.Record(c.Context(), afero.NewOsFs(), opts, *manifestPath, version)
			if err != nil {
				report.Error(c.ErrOrStderr(), err)
				return err
			}
			report.Print(c.OutOrStdout(), summary(res, time.Since(start)))
			fmt.Fprintf(c.OutOrStdout(), "Recorded %s in %s\n", version, *manifestPath)
			return nil
		},
	}
	recordCmd.Flags().StringVarP(&version, "version", "v", "", "version to record the run under")
	addOptionFlags(recordCmd.Flags(), flags, imp)
	_ = recordCmd.MarkFlagRequired("version")
	return recordCmd
}

func newSnapshotListCommand(manifestPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE: func(c *cobra.Command, args []string) error {
			m, err := snapshot.List(afero.NewOsFs(), *manifestPath)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			if len(m.Runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			for _, r := range m.Runs {
				marker := " "
				switch r.Version {
				case m.CurrentVersion:
					marker = "*"
				case m.PreviousVersion:
					marker = "-"
				}
				fmt.Fprintf(out, "%s %s\t%s\t%d units\t%d exports\n", marker, r.Version, r.Package, len(r.Units), len(r.Exports))
			}
			return nil
		},
	}
}

func newSnapshotDiffCommand(manifestPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "diff the current run against the previous one",
		RunE: func(c *cobra.Command, args []string) error {
			diff, err := snapshot.DiffCurrentWithPrevious(afero.NewOsFs(), *manifestPath)
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Fprintln(c.OutOrStdout(), "No differences")
				return nil
			}
			fmt.Fprint(c.OutOrStdout(), diff)
			return nil
		},
	}
}
