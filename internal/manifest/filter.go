package manifest

import (
	"fmt"
	"path"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/depo/internal/errors"
)

// Filter decides which projects a run touches. A nil Filter selects every
// enabled project.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
	only    map[string]bool
}

// NewFilter compiles include and exclude glob patterns matched against
// project local paths.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = compileAll(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileAll(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid project pattern %q", pattern)).
				WithValue(pattern).WithCause(err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Only returns a copy of the filter restricted to the given local paths.
// An empty list leaves the filter unrestricted.
func (f *Filter) Only(paths []string) *Filter {
	out := &Filter{}
	if f != nil {
		out.include = f.include
		out.exclude = f.exclude
	}
	if len(paths) > 0 {
		out.only = make(map[string]bool, len(paths))
		for _, p := range paths {
			out.only[path.Clean(p)] = true
		}
	}
	return out
}

// Selected reports whether p should be synchronized or published.
func (f *Filter) Selected(p *Project) bool {
	if !p.Enabled {
		return false
	}
	if f == nil {
		return true
	}
	local := p.LocalPath()
	if f.only != nil && !f.only[local] {
		return false
	}
	if len(f.include) > 0 && !matchAny(f.include, local) {
		return false
	}
	return !matchAny(f.exclude, local)
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
