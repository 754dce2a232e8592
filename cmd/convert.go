package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/progress"
)

var (
	convertAI      bool
	convertEnhance bool
	convertStdout  bool
	convertQuiet   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file-or-url>...",
	Short: "Convert files or URLs to Markdown in the output directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().BoolVar(&convertAI, "ai", false, "describe images and analyze the document")
	convertCmd.Flags().BoolVar(&convertEnhance, "enhance", false, "append an AI document analysis")
	convertCmd.Flags().BoolVar(&convertStdout, "stdout", false, "also print the markdown")
	convertCmd.Flags().BoolVarP(&convertQuiet, "quiet", "q", false, "no progress bar")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	app, err := loadApp(ctx, cfgFile, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	flags := domain.Flags{UseAIMode: convertAI, UseAPIEnhancement: convertEnhance}
	failed := 0
	for _, input := range args {
		task, err := app.Coordinator.Submit(ctx, domain.NewRequest(input, flags))
		if err != nil {
			return err
		}
		res := follow(ctx, task, app.Coordinator, cmd.ErrOrStderr(), !convertQuiet)
		printResult(cmd.ErrOrStderr(), res)
		if res.Status != domain.StatusCompleted {
			failed++
			continue
		}
		if convertStdout {
			fmt.Fprintln(cmd.OutOrStdout(), res.Markdown)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions did not complete", failed, len(args))
	}
	return nil
}

// follow renders task progress until the result arrives. An interrupt
// cancels the task; it then stops at its next stage boundary.
func follow(ctx context.Context, task *progress.Task, coord *progress.Coordinator, out io.Writer, show bool) *domain.ConversionResult {
	var bar *progressbar.ProgressBar
	if show {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(task.Request.FileName()),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(out, "\n") }),
		)
	}

	unwatch := context.AfterFunc(ctx, func() { coord.Cancel(task.ID) })
	defer unwatch()

	for evt := range task.Events() {
		if bar != nil {
			bar.Describe(fmt.Sprintf("%-24s %s", task.Request.FileName(), evt.Stage))
			_ = bar.Set(evt.Percent)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return task.Result()
}

func printResult(out io.Writer, res *domain.ConversionResult) {
	switch res.Status {
	case domain.StatusCompleted:
		fmt.Fprintf(out, "%s %s -> %s (%s)\n", color.GreenString("✓"), res.InputFile, res.OutputFile, res.Elapsed.Round(time.Millisecond))
	case domain.StatusCancelled:
		fmt.Fprintf(out, "%s %s cancelled\n", color.YellowString("⚠"), res.InputFile)
	default:
		fmt.Fprintf(out, "%s %s: %s\n", color.RedString("✗"), res.InputFile, res.Error)
	}
}
