package platform

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Now is the clock used throughout the core. Tests may override it.
var Now = time.Now

// IsWindows reports whether we are running on a Windows-family platform.
func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// IsMacOS reports whether we are running on macOS.
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// OSName returns a short human-readable platform name used in prompts.
func OSName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return "Linux"
	}
}

// ShellCommand returns the argv used to run a command line through the
// platform shell.
func ShellCommand(command string) (string, []string) {
	if IsWindows() {
		return "cmd", []string{"/C", command}
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return shell, []string{"-c", command}
}

// QuoteArg quotes a single argument for safe embedding in a shell command.
func QuoteArg(arg string) string {
	if IsWindows() {
		if strings.ContainsAny(arg, " \t\"") {
			return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		return arg
	}
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`;|&<>(){}*?[]~#") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// Workdir returns the configured working directory if it exists, otherwise
// the actual process working directory.
func Workdir(configured string) string {
	if configured != "" {
		if info, err := os.Stat(configured); err == nil && info.IsDir() {
			return configured
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// HashDir returns a short stable 8-char hash of a directory path, used to
// scope per-project files under the temp directory.
func HashDir(dir string) string {
	h := fnv.New32a()
	h.Write([]byte(filepath.Clean(dir)))
	return fmt.Sprintf("%08x", h.Sum32())
}

// DaemonLogPath returns the per-project log file path for long-running
// children started from dir. One log per project; restarts overwrite it.
func DaemonLogPath(dir string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("dnm_%s.log", HashDir(dir)))
}
