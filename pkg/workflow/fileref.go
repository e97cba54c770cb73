package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mingkeli/devagent/pkg/platform"
)

// fileRefPattern matches @path references in user input.
var fileRefPattern = regexp.MustCompile(`@([^\s@]+)`)

// maxRefBytes bounds how much of a referenced file is inlined.
const maxRefBytes = 64 * 1024

// processFileReferences resolves @path references into {path, content}
// tuples and rewrites the input with the references expanded into plain
// paths. Paths matched by the project's .gitignore are skipped, so the
// model never sees build artifacts or secrets the repo already excludes.
func (e *Engine) processFileReferences(ctx context.Context, s *State) (*Delta, error) {
	input := s.Exec.UserInput
	matches := fileRefPattern.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return &Delta{}, nil
	}

	workdir := platform.Workdir(e.Config.Workdir)
	ignorer := loadIgnorer(workdir)

	var refs []FileRef
	for _, m := range matches {
		rel := m[1]
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(workdir, rel)
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			if e.Logger != nil {
				e.Logger.Debugf("skipping gitignored reference %s", rel)
			}
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(data) > maxRefBytes {
			data = data[:maxRefBytes]
		}
		refs = append(refs, FileRef{Path: path, Content: string(data)})
	}

	if len(refs) == 0 {
		return &Delta{}, nil
	}

	// Rewrite the input so downstream prompts see annotated paths plus the
	// file bodies.
	normalized := fileRefPattern.ReplaceAllString(input, "$1")
	var b strings.Builder
	b.WriteString(normalized)
	for _, ref := range refs {
		b.WriteString(fmt.Sprintf("\n\n[文件 %s]\n%s", ref.Path, ref.Content))
	}

	return &Delta{
		UserInput: strPtr(b.String()),
		Files:     &FileContext{Refs: refs},
	}, nil
}

// loadIgnorer compiles the project .gitignore when present.
func loadIgnorer(workdir string) *gitignore.GitIgnore {
	path := filepath.Join(workdir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ignorer, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return ignorer
}
