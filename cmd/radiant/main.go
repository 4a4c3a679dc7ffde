// Package main provides the radiant CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/radiant/cli"
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "radiant",
		Short: "Radiology diagnostic reasoning orchestrator",
		Long: `Radiant drives a stepwise diagnostic protocol over imaging studies:
modality-specific observation, tool-augmented research against medical
knowledge sources, and synthesis into a reviewable structured diagnosis.`,
	}

	rootCmd.AddCommand(
		diagnoseCmd(),
		askCmd(),
		chatCmd(),
		reviewCmd(),
		showCmd(),
		historyCmd(),
		statsCmd(),
		sourcesCmd(),
		addCaseCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp wires the application and runs fn, closing resources after.
func withApp(fn func(app *cli.App) error) error {
	app, err := cli.NewApp()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func diagnoseCmd() *cobra.Command {
	var opts cli.DiagnoseOptions

	cmd := &cobra.Command{
		Use:   "diagnose [media files...]",
		Short: "Run the diagnostic protocol on an imaging study",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.MediaPaths = args
			return withApp(func(app *cli.App) error {
				return cli.Diagnose(context.Background(), app, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Modality, "modality", "image", "Study modality (image or video)")
	cmd.Flags().StringVar(&opts.RegionOfInterest, "roi", "", "Region of interest to prioritize")
	cmd.Flags().BoolVar(&opts.StructuredImaging, "structured", false, "Source is a structured imaging file")
	cmd.Flags().StringVar(&opts.PatientID, "patient", "", "Patient identifier")
	cmd.Flags().StringVar(&opts.AudioOut, "audio-out", "", "Write synthesized audio to this file")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Store the result as a pending diagnosis")

	return cmd
}

func askCmd() *cobra.Command {
	var audioOut string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single clinical question, streamed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Ask(context.Background(), app, args[0], audioOut)
			})
		},
	}

	cmd.Flags().StringVar(&audioOut, "audio-out", "", "Write synthesized audio to this file")

	return cmd
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with persisted history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Chat(context.Background(), app, sessionID)
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")

	return cmd
}

func reviewCmd() *cobra.Command {
	var reviewer string

	cmd := &cobra.Command{
		Use:   "review [id] [status]",
		Short: "Transition a diagnosis to pending, reviewed, approved or rejected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Review(context.Background(), app, args[0], args[1], reviewer)
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer identity")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print one diagnosis record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Show(context.Background(), app, args[0])
			})
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [patient]",
		Short: "List a patient's diagnoses, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.History(context.Background(), app, args[0])
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print diagnosis counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Stats(context.Background(), app)
			})
		},
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the registered knowledge sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Sources(app)
			})
		},
	}
}

func addCaseCmd() *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:   "add-case [finding] [diagnosis]",
		Short: "Store a prior case for precedent lookups",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.AddCase(context.Background(), app, patientID, args[0], args[1])
			})
		},
	}

	cmd.Flags().StringVar(&patientID, "patient", "", "Patient identifier")

	return cmd
}
