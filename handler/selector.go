// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/choria-io/archinstall/model"
)

// Selector decides if a file from the extracted tree should be copied, rel is the / separated
// path relative to the directory being copied
type Selector interface {
	Select(rel string, info fs.FileInfo) (bool, error)
}

// SelectorFunc adapts a function to the Selector interface
type SelectorFunc func(rel string, info fs.FileInfo) (bool, error)

func (f SelectorFunc) Select(rel string, info fs.FileInfo) (bool, error) {
	return f(rel, info)
}

// GlobSelector accepts files matching any of a set of doublestar patterns like models/**/*.onnx
type GlobSelector struct {
	patterns []string
}

// NewGlobSelector validates patterns and creates a selector accepting files that match any of them
func NewGlobSelector(patterns ...string) (*GlobSelector, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%w: at least one pattern is required", model.ErrInvalidArgument)
	}

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid pattern %q", model.ErrInvalidArgument, p)
		}
	}

	return &GlobSelector{patterns: patterns}, nil
}

func (g *GlobSelector) Select(rel string, _ fs.FileInfo) (bool, error) {
	for _, p := range g.patterns {
		// patterns without a separator match the file name in any directory
		target := rel
		if !strings.Contains(p, "/") {
			target = path.Base(rel)
		}

		ok, err := doublestar.Match(p, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}

// SelectEnv is the environment expressions given to NewExprSelector are evaluated against
type SelectEnv struct {
	Path string `expr:"path"`
	Name string `expr:"name"`
	Ext  string `expr:"ext"`
	Dir  string `expr:"dir"`
	Size int64  `expr:"size"`
}

// ExprSelector accepts files for which a boolean expression is true, for example
// ext == ".onnx" && size > 1024
type ExprSelector struct {
	query   string
	program *vm.Program
}

// NewExprSelector compiles query, it must evaluate to a boolean
func NewExprSelector(query string) (*ExprSelector, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: expression is required", model.ErrInvalidArgument)
	}

	program, err := expr.Compile(query, expr.Env(SelectEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: expr compile error for '%s': %w", model.ErrInvalidArgument, query, err)
	}

	return &ExprSelector{query: query, program: program}, nil
}

func (e *ExprSelector) Select(rel string, info fs.FileInfo) (bool, error) {
	env := SelectEnv{
		Path: rel,
		Name: path.Base(rel),
		Ext:  strings.ToLower(path.Ext(rel)),
		Dir:  path.Dir(rel),
	}
	if info != nil {
		env.Size = info.Size()
	}

	res, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("expr error for '%s': %w", e.query, err)
	}

	ok, _ := res.(bool)

	return ok, nil
}
