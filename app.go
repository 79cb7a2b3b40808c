package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"story-localizer/internal/config"
	"story-localizer/internal/corpus"
	"story-localizer/internal/document"
	"story-localizer/internal/errors"
	"story-localizer/internal/logger"
	"story-localizer/internal/parser"
	"story-localizer/internal/results"
	"story-localizer/internal/story"
	"story-localizer/internal/translator"
	"story-localizer/internal/types"
)

// ProviderFactory builds the transform function used by a translate or
// polish pass for documents in the given language.
type ProviderFactory func(ctx context.Context, pass types.Pass, lang string) (corpus.TransformFunc, error)

// RunOptions controls one pass over a batch of documents
type RunOptions struct {
	Inputs []string
	// OutputDir receives rewritten documents; empty writes next to the input
	OutputDir string
	// InPlace overwrites each input
	InPlace bool
	// Language overrides the language inferred from file names (polish)
	Language string
	// Validation settings
	Rules     []story.Rule
	ExemptIDs []string
	Caseless  bool
	// Base is the reference document of the keys pass
	Base string
}

// AppOptions configures where an App keeps its ledger and manifests
type AppOptions struct {
	Out        io.Writer
	LedgerDir  string
	ResultsDir string
	// Providers replaces the default Google and chat model providers
	Providers ProviderFactory
}

// App runs passes over batches of story documents. Each document is
// processed independently; a failing document is recorded and the batch
// continues.
type App struct {
	ctx       context.Context
	config    *config.ConfigManager
	errorMgr  *errors.ErrorManager
	printer   *results.Printer
	providers ProviderFactory

	resultsDir string

	// Lazily built providers
	mu        sync.Mutex
	chatModel model.BaseChatModel
	cache     *translator.TranslationCache
}

// NewApp creates an App from a loaded configuration.
func NewApp(ctx context.Context, cfg *config.ConfigManager, opts AppOptions) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	errorMgr, err := errors.NewErrorManager(opts.LedgerDir)
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to open error ledger", err)
	}

	a := &App{
		ctx:        ctx,
		config:     cfg,
		errorMgr:   errorMgr,
		printer:    results.NewPrinter(opts.Out),
		providers:  opts.Providers,
		resultsDir: opts.ResultsDir,
	}
	if a.providers == nil {
		a.providers = a.defaultProviders
	}

	logger.Debug("app initialized", logger.String("runID", errorMgr.RunID()))
	return a, nil
}

// RunID returns the identifier of the current run
func (a *App) RunID() string {
	return a.errorMgr.RunID()
}

// GetConfig returns the configuration manager
func (a *App) GetConfig() *config.ConfigManager {
	return a.config
}

// ErrorManager returns the failure ledger
func (a *App) ErrorManager() *errors.ErrorManager {
	return a.errorMgr
}

// providerConfig maps the application configuration onto provider settings.
func (a *App) providerConfig(lang string) (translator.ProviderConfig, error) {
	cfg := a.config.GetConfig()
	pc := translator.ProviderConfig{
		GoogleBaseURL:  cfg.TranslateBaseURL,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: lang,
		APIKey:         a.config.GetAPIKey(),
		BaseURL:        a.config.GetBaseURL(),
		Model:          a.config.GetModel(),
		Temperature:    cfg.Temperature,
		Timeout:        a.config.GetTimeout(),
		MaxRetries:     cfg.MaxRetries,
	}
	if pc.TargetLanguage == "" {
		pc.TargetLanguage = cfg.TargetLanguage
	}

	if result := translator.ValidateConfig(&pc); !result.IsValid {
		return pc, types.NewAppErrorWithDetails(types.ErrConfig, "invalid provider configuration", result.Errors[0].Error(), nil)
	}
	return pc, nil
}

// defaultProviders builds the Google translator for translate passes and
// the chat model polisher for polish passes.
func (a *App) defaultProviders(ctx context.Context, pass types.Pass, lang string) (corpus.TransformFunc, error) {
	pc, err := a.providerConfig(lang)
	if err != nil {
		return nil, err
	}

	switch pass {
	case types.PassTranslate:
		var t translator.Translator = translator.NewGoogleTranslator(pc)
		cache, err := a.translationCache()
		if err != nil {
			return nil, err
		}
		if cache != nil {
			t = translator.NewCachedTranslator(t, cache, pc.TargetLanguage)
		}
		return t.Translate, nil
	case types.PassPolish:
		chatModel, err := a.ensureChatModel(ctx, pc)
		if err != nil {
			return nil, err
		}
		return translator.NewPolisher(chatModel, pc).Polish, nil
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrInternal, "no provider for pass", string(pass), nil)
	}
}

func (a *App) ensureChatModel(ctx context.Context, pc translator.ProviderConfig) (model.BaseChatModel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chatModel != nil {
		return a.chatModel, nil
	}
	logger.Info("initializing chat model",
		logger.Int("apiKeyLength", len(pc.APIKey)),
		logger.String("model", pc.Model),
		logger.String("baseURL", pc.BaseURL))
	chatModel, err := translator.NewChatModel(ctx, pc)
	if err != nil {
		return nil, err
	}
	a.chatModel = chatModel
	return chatModel, nil
}

// translationCache opens the configured cache file once. It returns nil
// when no cache file is configured.
func (a *App) translationCache() (*translator.TranslationCache, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cache != nil {
		return a.cache, nil
	}
	path := a.config.GetConfig().CacheFile
	if path == "" {
		return nil, nil
	}

	cache, err := translator.NewTranslationCache(path, translator.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	if err := cache.Load(); err != nil {
		logger.Warn("translation cache unreadable, starting empty", logger.String("path", path), logger.Err(err))
	}
	a.cache = cache
	return cache, nil
}

func (a *App) saveCache() {
	a.mu.Lock()
	cache := a.cache
	a.mu.Unlock()
	if cache == nil {
		return
	}
	if err := cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
}

func (a *App) storyOptions() story.Options {
	cfg := a.config.GetConfig()
	return story.Options{
		Block:    cfg.Block,
		StoryKey: cfg.StoryKey,
		TextKey:  cfg.TextKey,
	}
}

// Run applies pass to every document named by opts.Inputs. It returns the
// run manifest, and an error when inputs cannot be resolved or when at
// least one document was left unprocessed.
func (a *App) Run(pass types.Pass, opts RunOptions) (*results.Manifest, error) {
	paths, err := parser.ResolveInputs(opts.Inputs)
	if err != nil {
		return nil, err
	}

	var base document.Value
	if pass == types.PassKeys {
		if opts.Base == "" {
			return nil, types.NewAppError(types.ErrInvalidInput, "keys needs a base document", nil)
		}
		if base, err = document.LoadFile(opts.Base, document.LoadOptions{}); err != nil {
			return nil, err
		}
	}

	rm, err := results.NewResultManager(a.resultsDir, a.RunID(), pass)
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to open results directory", err)
	}

	logger.Info("run started",
		logger.String("runID", a.RunID()),
		logger.String("pass", string(pass)),
		logger.Int("documents", len(paths)))

	for _, path := range paths {
		if err := a.ctx.Err(); err != nil {
			return rm.Manifest(), types.NewAppError(types.ErrInternal, "run cancelled", err)
		}

		res := &results.DocumentResult{Path: path, Status: results.StatusOK}
		stage, err := a.processDocument(pass, path, opts, base, res)
		if err != nil {
			res.Status = results.StatusFailed
			res.ErrorMessage = err.Error()
			a.printer.Failure(path, err)
			logger.Error("document failed", err, logger.String("path", path), logger.String("stage", string(stage)))
			if lerr := a.errorMgr.RecordError(path, pass, stage, err); lerr != nil {
				logger.Warn("failed to record error", logger.Err(lerr))
			}
		} else if res.Failed == 0 {
			if lerr := a.errorMgr.RemoveError(path); lerr != nil {
				logger.Warn("failed to clear error record", logger.Err(lerr))
			}
		}
		rm.Add(res)
	}

	if pass == types.PassTranslate {
		a.saveCache()
	}

	manifestPath, err := rm.Save()
	if err != nil {
		logger.Warn("failed to save manifest", logger.Err(err))
	} else {
		logger.Info("manifest saved", logger.String("path", manifestPath))
	}

	manifest := rm.Manifest()
	a.printer.Failures(a.errorMgr.RunErrors())
	a.printer.Summary(manifest)

	if a.errorMgr.HasRunFailures() {
		failed := manifest.Count(results.StatusFailed)
		return manifest, types.NewAppError(types.ErrInternal, fmt.Sprintf("%d document(s) failed", failed), nil)
	}
	return manifest, nil
}

// processDocument runs one pass over one document and fills res. On
// failure it returns the stage that failed.
func (a *App) processDocument(pass types.Pass, path string, opts RunOptions, base document.Value, res *results.DocumentResult) (errors.ErrorStage, error) {
	doc, err := document.LoadFile(path, document.LoadOptions{Repair: pass == types.PassTranslate})
	if err != nil {
		return errors.StageForError(err), err
	}
	if hash, err := results.CalculateFileHash(path); err == nil {
		res.SourceHash = hash
	}

	storyOpts := a.storyOptions()

	switch pass {
	case types.PassTranslate, types.PassPolish:
		lang := a.languageFor(pass, path, opts)
		fn, err := a.providers(a.ctx, pass, lang)
		if err != nil {
			return errors.StageSetup, err
		}

		policy := corpus.NewPolicy(string(pass), corpus.NewSkipSet(a.config.GetSkipTexts()...), fn)
		transformer := corpus.NewTransformer(
			corpus.WithField(a.config.GetConfig().TextKey),
			corpus.WithConcurrency(a.config.GetConcurrency()),
			corpus.WithProgress(func(done, total int, leaf string) {
				logger.Debug("leaf done", logger.String("path", path), logger.Int("done", done), logger.String("leaf", leaf))
			}),
		)
		report := transformer.Transform(a.ctx, doc, policy)
		a.printer.Transform(path, pass, report)

		res.Leaves = report.Leaves
		res.Replaced = report.Replaced
		res.Skipped = report.Skipped
		res.Failed = report.Failed()
		if res.Failed > 0 {
			res.Status = results.StatusPartial
			if err := a.errorMgr.RecordLeafFailures(path, pass, leafFailures(report)); err != nil {
				logger.Warn("failed to record leaf failures", logger.Err(err))
			}
		}

		return a.save(pass, path, opts, lang, report.Document, res)

	case types.PassDedupe:
		dedup, err := story.Deduplicate(doc, storyOpts)
		if err != nil {
			return errors.StageForError(err), err
		}
		a.printer.Dedup(path, dedup)
		res.Removed = len(dedup.RemovedIDs)
		return a.save(pass, path, opts, "", dedup.Document, res)

	case types.PassAudit:
		limit := a.config.GetCharLimit()
		findings, err := story.Audit(doc, limit, storyOpts)
		if err != nil {
			return errors.StageForError(err), err
		}
		a.printer.Audit(path, limit, findings)
		res.Findings = len(findings)

	case types.PassValidate:
		rules := story.Rules{
			Enabled:   opts.Rules,
			ExemptIDs: opts.ExemptIDs,
			CharLimit: a.config.GetCharLimit(),
			Caseless:  opts.Caseless,
		}
		if rules.ExemptIDs == nil {
			rules.ExemptIDs = story.DefaultExemptIDs
		}
		report, err := story.Validate(doc, rules, storyOpts)
		if err != nil {
			return errors.StageForError(err), err
		}
		a.printer.Validation(path, report)
		res.Findings = len(report.Issues)

	case types.PassKeys:
		missing, extra := document.CompareShapes(base, doc)
		a.printer.Keys(path, missing, extra)
		res.Findings = len(missing) + len(extra)

	default:
		return errors.StageLoad, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown pass", string(pass), nil)
	}

	if res.Findings > 0 {
		res.Status = results.StatusFindings
	}
	return "", nil
}

func (a *App) save(pass types.Pass, path string, opts RunOptions, lang string, doc document.Value, res *results.DocumentResult) (errors.ErrorStage, error) {
	out := outputPath(pass, path, opts, lang)
	if err := document.SaveFile(out, doc); err != nil {
		return errors.StageSave, err
	}
	res.Output = out
	logger.Info("document written", logger.String("input", path), logger.String("output", out))
	return "", nil
}

// languageFor picks the language a document is transformed into. A
// translate pass always uses the configured target. A polish pass keeps
// the document's own language: the explicit option, then the file name,
// then the configured target.
func (a *App) languageFor(pass types.Pass, path string, opts RunOptions) string {
	target := a.config.GetConfig().TargetLanguage
	if pass == types.PassTranslate {
		return translator.NormalizeLanguage(target)
	}
	if opts.Language != "" {
		return translator.NormalizeLanguage(opts.Language)
	}
	if lang, ok := parser.LanguageFromFilename(path); ok {
		return lang
	}
	return translator.NormalizeLanguage(target)
}

// outputPath names the file a rewriting pass writes:
//   - translate: the input name with its language suffix replaced (stories-en.json → stories-ja.json)
//   - polish: "polished-" + input name
//   - dedupe: the input name inside a cleaned_stories folder
//
// OutputDir replaces the default folder; InPlace overwrites the input.
func outputPath(pass types.Pass, path string, opts RunOptions, lang string) string {
	if opts.InPlace {
		return path
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	switch pass {
	case types.PassTranslate:
		name = filepath.Base(parser.WithLanguage(path, lang))
	case types.PassPolish:
		name = "polished-" + name
	case types.PassDedupe:
		dir = filepath.Join(dir, "cleaned_stories")
	}
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	return filepath.Join(dir, name)
}

func leafFailures(report *corpus.Report) []errors.LeafFailure {
	leaves := make([]errors.LeafFailure, 0, len(report.Errors))
	for _, e := range report.Errors {
		leaves = append(leaves, errors.LeafFailure{
			Path:     e.Path,
			Original: e.Original,
			ErrorMsg: e.Err.Error(),
		})
	}
	return leaves
}

// Runs lists stored run manifests, newest first
func (a *App) Runs() error {
	rm, err := results.NewResultManager(a.resultsDir, a.RunID(), "")
	if err != nil {
		return err
	}
	runs, err := rm.ListRuns()
	if err != nil {
		return err
	}
	a.printer.Runs(runs)
	return nil
}

// ExportFailures writes the paths of every recorded failure to path
func (a *App) ExportFailures(path string) error {
	return a.errorMgr.ExportErrorIDs(path)
}
