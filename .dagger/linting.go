package main

import (
	"context"
	"fmt"

	"dagger/atlas/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the common GolangcilintOpts used by both CheckLint and FixLint.
// It layers golangci-lint on top of goContainer() so the Go caches are already
// in place.
func (a *Atlas) lintOpts() dagger.GolangcilintOpts {
	base := a.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  a.Source.File(".golangci.yml"),
	}
}

// CheckLint runs golangci-lint against the atlas source code without applying fixes.
func (a *Atlas) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(a.Source, a.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the atlas source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (a *Atlas) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(a.Source, a.lintOpts()).Lint()
}
