package procman

import (
	"regexp"
	"strings"
)

// successPatterns mark a dev server as ready. Matched case-insensitively
// against the accumulated log.
var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)✓ ready in`),
	regexp.MustCompile(`(?i)✓ compiled .* in`),
	regexp.MustCompile(`(?i)ready in \d+\s*ms`),
	regexp.MustCompile(`(?i)local:\s*http://localhost:\d+`),
	regexp.MustCompile(`(?i)compiled successfully`),
	regexp.MustCompile(`(?i)webpack.*compiled`),
	regexp.MustCompile(`(?i)listening on`),
	regexp.MustCompile(`(?i)server.*started`),
	regexp.MustCompile(`(?i)running on.*http`),
	regexp.MustCompile(`(?i)development server running`),
	regexp.MustCompile(`服务启动`),
}

// errorPatterns mark a fatal startup failure.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cannot find module`),
	regexp.MustCompile(`(?i)module(not found)?error`),
	regexp.MustCompile(`(?i)fatal error`),
	regexp.MustCompile(`(?i)port.*already.*in.*use`),
	regexp.MustCompile(`(?i)eaddrinuse`),
}

// installNeededPatterns indicate dependencies are missing and an install
// may fix the failure.
var installNeededPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cannot find module`),
	regexp.MustCompile(`(?i)modulenotfounderror`),
	regexp.MustCompile(`(?i)no module named`),
	regexp.MustCompile(`(?i)missing dependency`),
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)node_modules.*missing`),
	regexp.MustCompile(`(?i)did you mean to install`),
	regexp.MustCompile(`(?i)please.*install`),
	regexp.MustCompile(`(?i)run.*install`),
	regexp.MustCompile(`(?i)elifecycle.*command failed`),
}

// portPatterns extract the listening port in priority order; the first two
// groups cover framework "Local:" banners, then localized banners, then the
// last raw localhost mention, then a bare "port N".
var (
	portPriorityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)local:.*?localhost:(\d+)`),
		regexp.MustCompile(`(?i)server.*?localhost:(\d+)`),
		regexp.MustCompile(`运行.*?localhost:(\d+)`),
	}
	portLocalhostPattern = regexp.MustCompile(`localhost:(\d+)`)
	portBarePattern      = regexp.MustCompile(`(?i)port (\d+)`)
)

// frameworkBanners map known startup banners to framework names, used only
// for friendlier diagnostics.
var frameworkBanners = map[string]*regexp.Regexp{
	"Next.js": regexp.MustCompile(`(?i)next\.js|▲ next`),
	"Vite":    regexp.MustCompile(`(?i)vite v\d`),
	"webpack": regexp.MustCompile(`(?i)webpack`),
}

// matchesAny reports whether any pattern matches the text.
func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// detectFramework names the framework whose banner appears in the log, or "".
func detectFramework(log string) string {
	for name, p := range frameworkBanners {
		if p.MatchString(log) {
			return name
		}
	}
	return ""
}

// extractPort applies the priority patterns in order. Within the priority
// tier the LAST match wins, so a final "Local: http://localhost:3002" beats
// an earlier warning mentioning localhost:3000.
func extractPort(log string) string {
	for _, p := range portPriorityPatterns {
		matches := p.FindAllStringSubmatch(log, -1)
		if len(matches) > 0 {
			return matches[len(matches)-1][1]
		}
	}
	if matches := portLocalhostPattern.FindAllStringSubmatch(log, -1); len(matches) > 0 {
		return matches[len(matches)-1][1]
	}
	if m := portBarePattern.FindStringSubmatch(log); m != nil {
		return m[1]
	}
	return ""
}

// logTail returns the last n lines of a log for diagnostics.
func logTail(log string, n int) string {
	lines := strings.Split(strings.TrimRight(log, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
