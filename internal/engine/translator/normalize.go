package translator

import (
	"regexp"
	"strings"
)

var (
	// Any line starting with the word module is a declaration, even inside a
	// function body.
	moduleLineRe      = regexp.MustCompile(`^\s*(?:export\s+)?module\b[^;]*;\s*(?://.*)?$`)
	partitionImportRe = regexp.MustCompile(`^(?:export\s+)?import\s*:([a-zA-Z0-9_.]+);\s*(?://.*)?$`)
	moduleImportRe    = regexp.MustCompile(`^(?:export\s+)?import\s+([a-zA-Z0-9_.]+);\s*(?://.*)?$`)
	headerUnitRe      = regexp.MustCompile(`^(?:export\s+)?import\s*(<[^>]+>|"[^"]+");\s*(?://.*)?$`)
	exportKeywordRe   = regexp.MustCompile(`^(\s*)export\b\s*(.*)$`)
)

// Normalize rewrites module syntax line by line and then strips comments from
// the whole buffer. The result is what the construct walker consumes.
func Normalize(src string, id Identity) string {
	return StripComments(RewriteModuleSyntax(src, id))
}

// RewriteModuleSyntax drops module declarations, turns imports into includes
// and removes leading export keywords. Other lines pass through unchanged.
func RewriteModuleSyntax(src string, id Identity) string {
	lines := strings.Split(src, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var b strings.Builder
	b.Grow(len(src))
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		rewritten, keep := rewriteLine(line, id)
		if !keep {
			continue
		}
		b.WriteString(rewritten)
		b.WriteByte('\n')
	}
	return b.String()
}

func rewriteLine(line string, id Identity) (string, bool) {
	if moduleLineRe.MatchString(line) {
		return "", false
	}

	trimmed := strings.TrimSpace(line)
	if m := partitionImportRe.FindStringSubmatch(trimmed); m != nil {
		return `#include "` + id.ModuleBase() + "_" + m[1] + `.hpp"`, true
	}
	if m := moduleImportRe.FindStringSubmatch(trimmed); m != nil {
		return `#include "` + strings.ReplaceAll(m[1], ".", "_") + `.hpp"`, true
	}
	if m := headerUnitRe.FindStringSubmatch(trimmed); m != nil {
		return "#include " + m[1], true
	}
	if m := exportKeywordRe.FindStringSubmatch(line); m != nil {
		return m[1] + m[2], true
	}
	return line, true
}
