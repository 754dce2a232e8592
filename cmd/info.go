package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show supported formats and the active configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := loadApp(cmd.Context(), cfgFile, os.Stderr)
		if err != nil {
			return err
		}
		printInfo(cmd.Context(), cmd.OutOrStdout(), app)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(ctx context.Context, out io.Writer, app *App) {
	fmt.Fprint(out, app.Converter.GetConversionInfo(ctx))
	fmt.Fprintln(out)
	status := func(ok bool) string {
		if ok {
			return color.GreenString("available")
		}
		return color.YellowString("unavailable")
	}
	fmt.Fprintf(out, "OCR engine %s: %s\n", app.OCR.EngineName(), status(app.OCR.Available()))
	fmt.Fprintf(out, "LLM model %s: %s\n", app.LLM.Model(), status(app.LLM.Available()))
}
