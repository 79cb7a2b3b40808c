package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"story-localizer/internal/config"
	"story-localizer/internal/logger"
	"story-localizer/internal/story"
	"story-localizer/internal/types"
)

// cliFlags holds the values of the global and per-command flags
type cliFlags struct {
	// Global flags
	configPath string
	envFile    string
	verbose    bool
	logFile    string
	ledgerDir  string
	resultsDir string

	// Overrides of configuration values
	target      string
	block       string
	textKey     string
	storyKey    string
	concurrency int
	charLimit   int
	cacheFile   string

	// Output
	outputDir string
	inPlace   bool

	// Command specific
	language   string
	rules      []string
	exemptIDs  []string
	caseless   bool
	base       string
	exportPath string
}

// overrides returns the configuration values set on the command line
func (f *cliFlags) overrides() *types.Config {
	return &types.Config{
		TargetLanguage: f.target,
		Block:          f.block,
		TextKey:        f.textKey,
		StoryKey:       f.storyKey,
		Concurrency:    f.concurrency,
		CharLimit:      f.charLimit,
		CacheFile:      f.cacheFile,
	}
}

func (f *cliFlags) runOptions(args []string) RunOptions {
	return RunOptions{
		Inputs:    args,
		OutputDir: f.outputDir,
		InPlace:   f.inPlace,
		Language:  f.language,
		ExemptIDs: f.exemptIDs,
		Caseless:  f.caseless,
		Base:      f.base,
	}
}

// newApp loads configuration and builds the App for one command
func newApp(ctx context.Context, f *cliFlags, out io.Writer, providers ProviderFactory) (*App, error) {
	if err := config.LoadEnvFile(f.envFile); err != nil {
		return nil, err
	}

	cm, err := config.NewConfigManager(f.configPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to locate configuration", err)
	}
	if err := cm.Load(); err != nil {
		return nil, err
	}
	cm.Merge(f.overrides())

	return NewApp(ctx, cm, AppOptions{
		Out:        out,
		LedgerDir:  f.ledgerDir,
		ResultsDir: f.resultsDir,
		Providers:  providers,
	})
}

func initLogger(f *cliFlags) error {
	level := logger.LevelWarn
	if f.verbose {
		level = logger.LevelDebug
	}
	return logger.Init(&logger.Config{
		LogFilePath:   f.logFile,
		Level:         level,
		EnableConsole: true,
	})
}

// newRootCmd builds the storyctl command tree. providers is nil outside
// tests.
func newRootCmd(out io.Writer, providers ProviderFactory) *cobra.Command {
	f := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "storyctl",
		Short: "Translate, polish and check multilingual story files",
		Long: `storyctl maintains a corpus of paginated story documents stored as JSON.

Every "text" field can be machine translated or polished by a chat model
without touching the rest of the document. Page sequences can be
deduplicated, audited for length and validated for broken links.

Inputs are JSON files, directories or glob patterns (stories/**/*.json).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(f); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Close()
		},
	}
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Config file, YAML or JSON (default ~/.config/story-localizer/storyctl.yaml)")
	pf.StringVar(&f.envFile, "env-file", ".env", "Environment file loaded before the configuration")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&f.logFile, "log-file", "", "Also write logs to this file")
	pf.StringVar(&f.ledgerDir, "ledger-dir", "", "Failure ledger directory (default ~/.story-localizer/errors)")
	pf.StringVar(&f.resultsDir, "results-dir", "", "Run manifest directory (default ~/.story-localizer/runs)")
	pf.StringVar(&f.block, "block", "", "Story block holding the page sequence, e.g. covarnius")
	pf.StringVar(&f.textKey, "text-key", "", "Key holding localizable text (default text)")
	pf.StringVar(&f.storyKey, "story-key", "", "Key holding the page sequence (default story)")

	run := func(pass types.Pass) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), f, out, providers)
			if err != nil {
				return err
			}

			opts := f.runOptions(args)
			for _, name := range f.rules {
				rule, ok := story.ParseRule(name)
				if !ok {
					return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown rule", name, nil)
				}
				opts.Rules = append(opts.Rules, rule)
			}

			_, err = app.Run(pass, opts)
			return err
		}
	}

	addOutputFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "Directory for rewritten documents")
		cmd.Flags().BoolVar(&f.inPlace, "in-place", false, "Overwrite the input documents")
		cmd.MarkFlagsMutuallyExclusive("output", "in-place")
	}

	translateCmd := &cobra.Command{
		Use:   "translate [inputs...]",
		Short: "Machine translate every text field",
		Long: `Translates every text field through Google Translate with source language
detection. Skip texts are left untouched. Output files take the target
language as suffix: stories-en.json becomes stories-ja.json.`,
		Args: cobra.MinimumNArgs(1),
		RunE: run(types.PassTranslate),
	}
	translateCmd.Flags().StringVarP(&f.target, "target", "t", "", "Target language code (default from config)")
	translateCmd.Flags().StringVar(&f.cacheFile, "cache", "", "Translation cache file")
	translateCmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Parallel provider calls per document")
	addOutputFlags(translateCmd)

	polishCmd := &cobra.Command{
		Use:   "polish [inputs...]",
		Short: "Polish every text field with a chat model",
		Long: `Sends every text field to an OpenAI compatible chat model asking for a
native-sounding rewrite. The language is taken from --lang, then from the
file name (stories-jp.json), then from the configured target.`,
		Args: cobra.MinimumNArgs(1),
		RunE: run(types.PassPolish),
	}
	polishCmd.Flags().StringVar(&f.language, "lang", "", "Language of the documents")
	polishCmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Parallel provider calls per document")
	addOutputFlags(polishCmd)

	dedupeCmd := &cobra.Command{
		Use:   "dedupe [inputs...]",
		Short: "Remove pages whose id appeared earlier",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(types.PassDedupe),
	}
	addOutputFlags(dedupeCmd)

	auditCmd := &cobra.Command{
		Use:   "audit [inputs...]",
		Short: "Report pages whose text is over the character limit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(types.PassAudit),
	}
	auditCmd.Flags().IntVar(&f.charLimit, "char-limit", 0, "Character limit (default 450)")

	validateCmd := &cobra.Command{
		Use:   "validate [inputs...]",
		Short: "Check links, ids, duplicate texts, capitalization and length",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(types.PassValidate),
	}
	var ruleNames []string
	for _, r := range story.AllRules() {
		ruleNames = append(ruleNames, string(r))
	}
	validateCmd.Flags().StringSliceVar(&f.rules, "rule", nil, "Rules to run: "+strings.Join(ruleNames, ", ")+" (default all)")
	validateCmd.Flags().StringSliceVar(&f.exemptIDs, "exempt", nil, "Page ids exempt from duplicate-text and lowercase-start")
	validateCmd.Flags().BoolVar(&f.caseless, "caseless", false, "Skip lowercase-start, for scripts without letter case")
	validateCmd.Flags().IntVar(&f.charLimit, "char-limit", 0, "Character limit (default 450)")

	keysCmd := &cobra.Command{
		Use:   "keys --base <file> [inputs...]",
		Short: "Compare the key structure of documents against a base document",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(types.PassKeys),
	}
	keysCmd.Flags().StringVar(&f.base, "base", "", "Reference document, e.g. stories-en.json")
	_ = keysCmd.MarkFlagRequired("base")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), f, out, providers)
			if err != nil {
				return err
			}
			return app.Runs()
		},
	}

	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "Write the documents recorded as failed, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), f, out, providers)
			if err != nil {
				return err
			}
			return app.ExportFailures(f.exportPath)
		},
	}
	failuresCmd.Flags().StringVar(&f.exportPath, "export", "failed.txt", "Output file")

	rootCmd.AddCommand(translateCmd, polishCmd, dedupeCmd, auditCmd, validateCmd, keysCmd, runsCmd, failuresCmd)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
