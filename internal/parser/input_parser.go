// Package parser provides input parsing and type identification for the story localizer.
package parser

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"story-localizer/internal/document"
	"story-localizer/internal/logger"
	"story-localizer/internal/translator"
	"story-localizer/internal/types"
)

// InputKind is the kind of a command-line input
type InputKind string

const (
	// InputFile is a single JSON document
	InputFile InputKind = "file"
	// InputDir is a folder whose JSON documents are processed
	InputDir InputKind = "dir"
	// InputGlob is a doublestar pattern such as stories/**/*.json
	InputGlob InputKind = "glob"
)

// Language suffix of a story file name: stories-jp.json, stories_pt-BR.json
var languageSuffixPattern = regexp.MustCompile(`[-_]([A-Za-z]{2,3})(?:[-_]([A-Za-z]{2}|\d{3}))?$`)

// ParseInput analyzes the input string and determines its kind.
//
// Input kind rules:
// - Contains a glob meta character (* ? [ {) → InputGlob
// - Names an existing directory → InputDir
// - Ends with .json → InputFile (existence is checked when it is loaded)
// - Otherwise → error (invalid input)
func ParseInput(input string) (InputKind, error) {
	logger.Debug("parsing input", logger.String("input", input))

	input = strings.TrimSpace(input)
	if input == "" {
		logger.Warn("parse input failed: empty input")
		return "", types.NewAppError(types.ErrInvalidInput, "input must not be empty", nil)
	}

	if isGlob(input) {
		if !doublestar.ValidatePathPattern(input) {
			return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid glob pattern", input, nil)
		}
		return InputGlob, nil
	}

	if info, err := os.Stat(input); err == nil && info.IsDir() {
		return InputDir, nil
	}

	if document.IsJSONPath(input) {
		return InputFile, nil
	}

	logger.Warn("invalid input format", logger.String("input", input))
	return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "input is not a JSON file, directory or glob", input, nil)
}

// isGlob checks if the input contains a doublestar meta character.
func isGlob(input string) bool {
	return strings.ContainsAny(input, "*?[{")
}

// ResolveInputs expands inputs into a list of JSON document paths.
// Directories contribute their top-level *.json files. Results keep the
// order of inputs, are sorted within each input, and contain no
// duplicates.
func ResolveInputs(inputs []string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "no input given", nil)
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, input := range inputs {
		matches, err := resolveOne(strings.TrimSpace(input))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			clean := filepath.Clean(m)
			if _, dup := seen[clean]; dup {
				continue
			}
			seen[clean] = struct{}{}
			paths = append(paths, clean)
		}
	}

	logger.Info("inputs resolved", logger.Int("inputs", len(inputs)), logger.Int("documents", len(paths)))
	return paths, nil
}

func resolveOne(input string) ([]string, error) {
	kind, err := ParseInput(input)
	if err != nil {
		return nil, err
	}

	switch kind {
	case InputFile:
		return []string{input}, nil
	case InputDir:
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, types.NewAppError(types.ErrFileNotFound, "failed to read directory", err)
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && document.IsJSONPath(e.Name()) {
				files = append(files, filepath.Join(input, e.Name()))
			}
		}
		return files, nil
	default:
		matches, err := doublestar.FilepathGlob(input, doublestar.WithFilesOnly())
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid glob pattern", input, err)
		}
		var files []string
		for _, m := range matches {
			if document.IsJSONPath(m) {
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "no JSON documents match", input, nil)
		}
		sort.Strings(files)
		return files, nil
	}
}

// LanguageFromFilename infers the language of a story file from its name
// suffix (stories-jp.json → "ja"). It reports false when the name carries
// no recognizable language code.
func LanguageFromFilename(path string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := languageSuffixPattern.FindStringSubmatch(stem)
	if m == nil {
		return "", false
	}

	code := m[1]
	if m[2] != "" {
		code += "-" + m[2]
	}
	tag, err := translator.ParseLanguage(code)
	if err != nil {
		return "", false
	}
	return tag.String(), true
}

// WithLanguage returns path with its language suffix set to lang:
// stories-en.json → stories-ja.json. A name without a recognizable suffix
// gets one appended.
func WithLanguage(path, lang string) string {
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}

	if _, ok := LanguageFromFilename(path); ok {
		loc := languageSuffixPattern.FindStringIndex(stem)
		stem = stem[:loc[0]]
	}
	return filepath.Join(filepath.Dir(path), stem+"-"+lang+ext)
}
