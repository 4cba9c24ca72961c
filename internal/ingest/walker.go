// Package ingest discovers analyzable source files under a repository
// root. Routing is by extension: SQL extensions go to the SQL extractor,
// code extensions go to the application-code extractor for their
// language. Everything else is skipped.
package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
)

// LanguageSQL routes a file to the SQL extractor; other language values
// name the application-code surface language.
const LanguageSQL = "sql"

// SourceFile is one discovered file, with its path relative to the walk
// root in slash form.
type SourceFile struct {
	Path     string
	Language string
	Size     int64
}

// Walker discovers source files per the repository configuration.
type Walker struct {
	cfg    config.RepositoryConfig
	logger *logging.Logger

	sqlExts  map[string]struct{}
	codeExts map[string]string
}

// NewWalker creates a walker for the given repository configuration.
func NewWalker(cfg config.RepositoryConfig, logger *logging.Logger) *Walker {
	if logger == nil {
		logger = logging.NewNop()
	}

	sqlExts := make(map[string]struct{}, len(cfg.SQLExtensions))
	for _, ext := range cfg.SQLExtensions {
		sqlExts[strings.ToLower(ext)] = struct{}{}
	}
	codeExts := make(map[string]string)
	for lang, exts := range cfg.CodeExtensions {
		for _, ext := range exts {
			codeExts[strings.ToLower(ext)] = lang
		}
	}

	return &Walker{
		cfg:      cfg,
		logger:   logger.Named("ingest"),
		sqlExts:  sqlExts,
		codeExts: codeExts,
	}
}

// Walk returns every analyzable file under root in lexical order.
// Ignored directories are pruned; oversized and unroutable files are
// skipped.
func (w *Walker) Walk(root string) ([]SourceFile, error) {
	var out []SourceFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && w.ignored(name) {
				w.logger.Debug("pruning ignored directory", zap.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}
		if w.ignored(name) {
			return nil
		}

		lang, ok := w.route(name)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > w.cfg.MaxFileSize {
			w.logger.Warn("skipping oversized file",
				zap.String("path", path),
				zap.Int64("size", info.Size()),
				zap.Int64("max", w.cfg.MaxFileSize),
			)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, SourceFile{
			Path:     filepath.ToSlash(rel),
			Language: lang,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	w.logger.Info("repository walk complete",
		zap.String("root", root),
		zap.Int("files", len(out)),
	)
	return out, nil
}

// ignored matches a basename against the ignore list: exact names and
// glob patterns.
func (w *Walker) ignored(name string) bool {
	for _, pattern := range w.cfg.Ignore {
		if pattern == name {
			return true
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// route classifies a file by extension.
func (w *Walker) route(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", false
	}
	if _, ok := w.sqlExts[ext]; ok {
		return LanguageSQL, true
	}
	if lang, ok := w.codeExts[ext]; ok {
		return lang, true
	}
	return "", false
}
