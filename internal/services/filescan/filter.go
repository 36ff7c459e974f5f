// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/pkg/stringutils"
)

var ErrInvalidFilter = errors.New("invalid filter expression")

// FilterEnv is the set of fields a filter expression can reference, for example
// `size > 100 * MiB && ageDays > 30 && folder == "/archive"`.
type FilterEnv struct {
	Name     string    `expr:"name"`
	Folder   string    `expr:"folder"`
	Size     int64     `expr:"size"`
	Modified time.Time `expr:"modified"`
	AgeDays  float64   `expr:"ageDays"`
	Uploader string    `expr:"uploader"`

	KiB int64 `expr:"KiB"`
	MiB int64 `expr:"MiB"`
	GiB int64 `expr:"GiB"`
}

// Filter is a compiled boolean expression over FilterEnv.
type Filter struct {
	src     string
	program *vm.Program
}

// CompileFilter compiles src. An empty src yields a nil filter that matches everything.
func CompileFilter(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return &Filter{src: src, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Match evaluates the filter for rec. A nil filter matches.
func (f *Filter) Match(rec FileRecord, now time.Time) (bool, error) {
	if f == nil {
		return true, nil
	}
	env := FilterEnv{
		Name:     rec.Name,
		Folder:   rec.FolderPath,
		Size:     rec.SizeBytes,
		Modified: rec.ModifiedAt,
		Uploader: rec.Uploader,
		KiB:      1 << 10,
		MiB:      1 << 20,
		GiB:      1 << 30,
	}
	if !rec.ModifiedAt.IsZero() {
		env.AgeDays = now.Sub(rec.ModifiedAt).Hours() / 24
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Query selects files from a crawl. Term and Where may be combined; at least one is required.
type Query struct {
	Term  string
	Fuzzy bool
	Where string
}

// Find crawls scope and returns the files that satisfy q.
func (s *Service) Find(ctx context.Context, scope remote.Scope, q Query) ([]FileRecord, error) {
	needle := stringutils.FoldName(q.Term)
	filter, err := CompileFilter(q.Where)
	if err != nil {
		return nil, err
	}
	if needle == "" && filter == nil {
		return nil, ErrEmptySearchTerm
	}

	inv, err := s.Crawl(ctx, scope)
	if err != nil {
		return nil, err
	}

	records := inv.Records
	if filter != nil {
		now := s.now()
		kept := make([]FileRecord, 0, len(records))
		for _, rec := range records {
			ok, err := filter.Match(rec, now)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if needle == "" {
		return records, nil
	}
	return matchRecords(records, needle, q.Fuzzy), nil
}
