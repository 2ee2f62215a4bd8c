package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warprun/internal/sandbox"
	"github.com/BioHazard786/Warprun/internal/ui"
)

var flagRunLanguage string

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run code locally in the sandbox",
	Long: `Run a file, or code read from stdin, in the local sandbox.
The language follows the file extension unless --lang is given.

Examples:
  warprun run hello.js
  echo 'print(6*7)' | warprun run --lang python`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			code []byte
			err  error
			path string
		)
		if len(args) == 1 {
			path = args[0]
			code, err = os.ReadFile(path)
		} else {
			code, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read code: %w", err)
		}

		language := flagRunLanguage
		if language == "" {
			language = languageForFile(path)
		}

		sb := newSandbox()
		start := time.Now()
		out, err := sb.Execute(cmd.Context(), language, string(code))

		ui.RenderResult(ui.Result{Language: language, Output: out, Err: err, Elapsed: time.Since(start)})
		if err != nil {
			return fmt.Errorf("%s run failed", language)
		}
		return nil
	},
}

// languageForFile maps a file extension to a language tag, defaulting to
// JavaScript.
func languageForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return sandbox.LanguagePython
	default:
		return sandbox.LanguageJavaScript
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&flagRunLanguage, "lang", "l", "", "Language (javascript, python)")
}
