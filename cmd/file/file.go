package file

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Demr1on/batmap-app/cmd/setup"
	"github.com/Demr1on/batmap-app/internal/analysis"
	"github.com/Demr1on/batmap-app/internal/conf"
)

// Command creates the file command for classifying recordings on disk.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		format       string
		outputPath   string
		withFeatures bool
	)

	cmd := &cobra.Command{
		Use:   "file [input.wav|dir]...",
		Short: "Analyze audio files",
		Long:  "Classify one or more .wav or .flac recordings. Directories are searched recursively.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cls, err := setup.BuildPipeline(settings, nil)
			if err != nil {
				return err
			}
			defer cls.Close()

			if err := setup.LoadModel(cmd.Context(), cls, &settings.Model); err != nil {
				return fmt.Errorf("error loading model: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("error creating output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			return analysis.FileAnalysis(cmd.Context(), p, args, w, format, withFeatures)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", analysis.OutputTable, "Output format: table, csv, json")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write results to this file instead of stdout")
	cmd.Flags().BoolVar(&withFeatures, "features", false, "Include the extracted feature vector in json output")

	return cmd
}
