package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/server"
)

func diagnoseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Report on the dataset without modifying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.pipeline().Diagnose(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
}

func cleanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean the dataset and save it to the output path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clog, err := a.pipeline().Clean(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(clog)
		},
	}
}

func exportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Split the cleaned dataset and write the YOLO layout",
		Long:  "Split the images of the cleaned annotation file at the output path and write the YOLO layout to the export directory. Run clean first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.pipeline().Export(cmd.Context())
			if res != nil {
				if printErr := a.printJSON(res); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
}

func runCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Diagnose, clean, split and export in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.pipeline().Run(cmd.Context())
			if report != nil {
				if printErr := a.printJSON(report); printErr != nil {
					return printErr
				}
			}
			var partial *coco.PartialWriteError
			if errors.As(err, &partial) {
				a.log.Warn().Int("failures", len(partial.Failures)).Msg("export finished with copy failures")
			}
			return err
		},
	}
}

func reportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the report of the last run in the export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.pipeline().LastReport()
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
}

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dataset tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server.Version = a.build.Version
			a.log.Info().Str("version", a.build.Version).Msg("MCP server starting")
			return server.New(a.fsys, *a.settings, a.log).Serve(cmd.Context(), cmd.InOrStdin(), a.stdout)
		},
	}
}

func versionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "coco2yolo %s\n", a.build.Version)
			fmt.Fprintf(a.stdout, "  Build time: %s\n", a.build.BuildTime)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", a.build.GitCommit)
			return nil
		},
	}
}
