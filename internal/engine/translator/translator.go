// Package translator rewrites a C++ module interface or partition unit into a
// classic header/source pair.
package translator

import (
	"context"
	"cppmsplit/internal/core/errors"
	"log/slog"
	"os"
	"path/filepath"
)

// Options tunes a single translation. The zero value is ready to use.
type Options struct {
	// Logger receives one Debug record per classified construct.
	Logger *slog.Logger
}

// Result is the outcome of one translation. HeaderPath and SourcePath are set
// only when the pair has been written to disk.
type Result struct {
	Identity   Identity
	Header     string
	Source     string
	Constructs map[ConstructKind]int

	HeaderPath string
	SourcePath string
}

// ConstructCount returns the total number of constructs the walker emitted.
func (r *Result) ConstructCount() int {
	n := 0
	for _, c := range r.Constructs {
		n += c
	}
	return n
}

// Translate converts the text of a module unit. It does not touch the
// filesystem; any error leaves the returned Result nil.
func Translate(src string, opts Options) (*Result, error) {
	id, err := ResolveIdentity(src)
	if err != nil {
		return nil, err
	}

	w := newWalker(opts.Logger)
	if err := w.walk(Normalize(src, id), ScopeContext{}); err != nil {
		return nil, err
	}

	return &Result{
		Identity:   id,
		Header:     renderHeader(id, w.header.String()),
		Source:     renderSource(id, w.source.String()),
		Constructs: w.counts,
	}, nil
}

// TranslateFile reads unitPath, translates it and writes <base>.hpp and
// <base>.cpp into outputDir, creating it if needed. An empty outputDir means
// the directory of the unit. Nothing is written when translation fails.
func TranslateFile(ctx context.Context, unitPath, outputDir string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(unitPath)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "unit not found"), errors.CtxPath, unitPath)
	}
	if info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "unit is a directory"), errors.CtxPath, unitPath)
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIOFailure, "read unit"), errors.CtxPath, unitPath)
	}

	res, err := Translate(string(data), opts)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, unitPath)
	}

	if outputDir == "" {
		outputDir = filepath.Dir(unitPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := WriteOutputs(res, outputDir); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, unitPath)
	}
	return res, nil
}
