package procman

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType classifies a working directory.
type ProjectType string

const (
	ProjectNode    ProjectType = "node"
	ProjectPython  ProjectType = "python"
	ProjectUnknown ProjectType = "unknown"
)

// Project is the result of project detection.
type Project struct {
	Type           ProjectType
	Dir            string
	PackageManager string            // node only
	Scripts        map[string]string // package.json scripts
	PythonEntry    string            // python only
	HasRequirement bool
	HasPyproject   bool
}

var pythonEntryFiles = []string{
	"requirements.txt", "pyproject.toml", "setup.py",
	"main.py", "app.py", "manage.py", "run.py",
}

// DetectProject inspects dir: package.json means Node (lockfile picks the
// package manager); any of the Python markers means Python.
func DetectProject(dir string) Project {
	proj := Project{Type: ProjectUnknown, Dir: dir}

	pkgPath := filepath.Join(dir, "package.json")
	if data, err := os.ReadFile(pkgPath); err == nil {
		proj.Type = ProjectNode
		proj.PackageManager = detectPackageManager(dir)
		var pkg struct {
			Scripts map[string]string `json:"scripts"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			proj.Scripts = pkg.Scripts
		}
		return proj
	}

	for _, f := range pythonEntryFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			proj.Type = ProjectPython
			switch f {
			case "requirements.txt":
				proj.HasRequirement = true
			case "pyproject.toml":
				proj.HasPyproject = true
			}
			if proj.PythonEntry == "" && strings.HasSuffix(f, ".py") {
				proj.PythonEntry = f
			}
		}
	}
	return proj
}

func detectPackageManager(dir string) string {
	switch {
	case exists(filepath.Join(dir, "pnpm-lock.yaml")):
		return "pnpm"
	case exists(filepath.Join(dir, "yarn.lock")):
		return "yarn"
	case exists(filepath.Join(dir, "package-lock.json")):
		return "npm"
	default:
		return "pnpm"
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// startScriptPriorities are tried in order before fuzzy matching.
var startScriptPriorities = []string{"dev", "start", "serve", "preview"}

// buildScriptPriorities are tried in order for builds.
var buildScriptPriorities = []string{"build", "bundle", "dist", "compile"}

// StartCommand picks the dev-server command for the project.
func (p Project) StartCommand() string {
	switch p.Type {
	case ProjectNode:
		if script := pickScript(p.Scripts, startScriptPriorities); script != "" {
			return p.PackageManager + " run " + script
		}
		return p.PackageManager + " start"
	case ProjectPython:
		if p.PythonEntry == "manage.py" {
			return "python manage.py runserver"
		}
		if p.PythonEntry != "" {
			return "python " + p.PythonEntry
		}
		return "python main.py"
	}
	return ""
}

// BuildCommand picks the build command for the project.
func (p Project) BuildCommand() string {
	switch p.Type {
	case ProjectNode:
		if script := pickScript(p.Scripts, buildScriptPriorities); script != "" {
			return p.PackageManager + " run " + script
		}
		return p.PackageManager + " run build"
	case ProjectPython:
		if p.HasPyproject {
			return "pip install -e ."
		}
		return "python -m compileall ."
	}
	return ""
}

// InstallCommand picks the dependency install command.
func (p Project) InstallCommand() string {
	switch p.Type {
	case ProjectNode:
		return p.PackageManager + " install"
	case ProjectPython:
		if p.HasRequirement {
			return "pip install -r requirements.txt"
		}
		return "pip install -e ."
	}
	return ""
}

// pickScript returns the first priority script present, else a fuzzy match
// (a script whose name contains a priority word).
func pickScript(scripts map[string]string, priorities []string) string {
	if len(scripts) == 0 {
		return ""
	}
	for _, want := range priorities {
		if _, ok := scripts[want]; ok {
			return want
		}
	}
	for _, want := range priorities {
		for name := range scripts {
			if strings.Contains(strings.ToLower(name), want) {
				return name
			}
		}
	}
	return ""
}
