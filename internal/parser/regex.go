package parser

import "regexp"

// Every pattern here is anchored and compiled with RE2, so matching stays
// linear in the input length regardless of how adversarial a line is.
var (
	// excerptDelimiterPattern matches a standalone `<!--more-->` line.
	excerptDelimiterPattern = regexp.MustCompile(`^[ \t]*<!--[ \t]*more[ \t]*-->[ \t]*$`)

	// componentOpenPattern matches `::name`, `::name{props}` and deeper
	// `:::name` openers on their own line.
	componentOpenPattern = regexp.MustCompile(`^[ \t]*(:{2,})([A-Za-z][\w-]*)[ \t]*(?:\{([^}\n]*)\})?[ \t]*$`)

	// componentClosePattern matches a bare run of colons on its own line.
	componentClosePattern = regexp.MustCompile(`^[ \t]*(:{2,})[ \t]*$`)

	// inlineComponentPattern matches `:name[label]{props}` where at least
	// one of label or props is present.
	inlineComponentPattern = regexp.MustCompile(`(^|[\s(])(:[A-Za-z][\w-]*)(?:\[([^\]\n]*)\])?(?:\{([^}\n]*)\})?`)

	// componentPropPattern matches one `key="value"`, `key='value'`,
	// `key=value`, `.class`, `#id` or bare flag within a props block.
	componentPropPattern = regexp.MustCompile(`([.#]?:?[\w-]+)(?:=(?:"([^"]*)"|'([^']*)'|([^\s"']+)))?`)

	// fencePattern matches a code fence opener or closer.
	fencePattern = regexp.MustCompile("^[ \t]{0,3}(`{3,}|~{3,})")

	// orderPrefixPattern matches a numeric ordering prefix such as `2.`.
	orderPrefixPattern = regexp.MustCompile(`^(\d+)\.`)

	// semverSegmentPattern matches version-like segments (`1.2.x`, `v2.0.1`)
	// that must keep their leading digits.
	semverSegmentPattern = regexp.MustCompile(`^v?\d+\.(?:\d+|x)(?:\.(?:\d+|x))?(?:[-+][\w.-]*)?$`)

	// yamlLinePattern extracts line numbers from yaml error messages.
	yamlLinePattern = regexp.MustCompile(`line (\d+)`)
)

// IsExcerptDelimiter reports whether line is an excerpt delimiter.
func IsExcerptDelimiter(line string) bool {
	return excerptDelimiterPattern.MatchString(line)
}

// OrderPrefix splits a numeric ordering prefix from name. Version-like
// names are returned untouched.
func OrderPrefix(name string) (order int, rest string, ok bool) {
	if semverSegmentPattern.MatchString(name) {
		return 0, name, false
	}
	match := orderPrefixPattern.FindStringSubmatch(name)
	if match == nil {
		return 0, name, false
	}
	n := 0
	for _, r := range match[1] {
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0, name, false
		}
	}
	return n, name[len(match[0]):], true
}

// IsSemverSegment reports whether segment looks like a version number.
func IsSemverSegment(segment string) bool {
	return semverSegmentPattern.MatchString(segment)
}
