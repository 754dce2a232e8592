// Package cmd holds the mdconvert command line: the MCP stdio server, the
// HTTP server and one-shot conversion.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Server identity constants.
const (
	serverName    = "mdconvert"
	serverVersion = "0.2.0"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   serverName,
	Short: "Convert documents, images and web pages to Markdown",
	Long: `mdconvert converts office documents, PDFs, images, archives and URLs to
Markdown. Embedded images are run through OCR and, in AI mode, described
by a vision model. Run it as an MCP server (serve), an HTTP service (http)
or directly from the shell (convert).`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
