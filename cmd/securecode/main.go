// Command securecode analyzes a source file for vulnerabilities,
// verifies each suspected flaw symbolically and attaches a verified
// patch where it can.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"securecode/internal/config"
	"securecode/internal/logging"
	"securecode/internal/pipeline"
	"securecode/internal/report"
	"securecode/internal/types"
)

var (
	flagConfig string
	flagDebug  bool

	flagLanguage string
	flagFormat   string
	flagOutput   string
	flagWorkers  int
	flagMaxIter  int
)

func main() {
	root := &cobra.Command{
		Use:           "securecode",
		Short:         "Detect, verify and repair source-code vulnerabilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	analyze := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the full pipeline over one source file",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyze.Flags().StringVar(&flagLanguage, "lang", "", "source language (python, go, javascript, solidity); inferred from the extension when empty; only python findings are verified and patched")
	analyze.Flags().StringVar(&flagFormat, "format", "json", "output format: json or sarif")
	analyze.Flags().StringVarP(&flagOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyze.Flags().IntVar(&flagWorkers, "workers", 0, "override the hypothesis worker pool size")
	analyze.Flags().IntVar(&flagMaxIter, "max-iterations", 0, "override the patch-verify iteration budget")
	root.AddCommand(analyze)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "securecode:", err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDebug {
		cfg.Debug = true
	}
	if flagWorkers > 0 {
		cfg.Budgets.Workers = flagWorkers
	}
	if flagMaxIter > 0 {
		cfg.Budgets.MaxIterations = flagMaxIter
	}

	if _, err := logging.Initialize(cfg.Debug); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lang, err := resolveLanguage(path, flagLanguage)
	if err != nil {
		return err
	}

	orch, err := pipeline.Build(ctx, cfg)
	if err != nil {
		return err
	}

	src := types.SourceUnit{Path: path, Language: lang, Code: string(code)}
	state, runErr := orch.Analyze(ctx, src, cfg.Budgets)

	out := cmd.OutOrStdout()
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch flagFormat {
	case "sarif":
		err = report.WriteSARIF(out, state)
	case "json":
		err = report.WriteJSON(out, state)
	default:
		return fmt.Errorf("unknown format %q", flagFormat)
	}
	if err != nil {
		return err
	}
	// The partial report is still written when the run aborted.
	return runErr
}

func resolveLanguage(path, override string) (types.Language, error) {
	if override != "" {
		switch lang := types.Language(override); lang {
		case types.LangPython, types.LangGo, types.LangJavaScript, types.LangSolidity:
			return lang, nil
		}
		return "", fmt.Errorf("unsupported language %q", override)
	}
	switch filepath.Ext(path) {
	case ".py":
		return types.LangPython, nil
	case ".go":
		return types.LangGo, nil
	case ".js", ".mjs":
		return types.LangJavaScript, nil
	case ".sol":
		return types.LangSolidity, nil
	}
	return "", fmt.Errorf("cannot infer language of %s, pass --lang", path)
}
