package retrieval

import "regexp"

const defaultScope = "global"

// scope resolution modes.
const (
	ModeExplicit = "explicit"
	ModeInferred = "inferred"
	ModeGlobal   = "global"
)

var (
	isoTagPattern   = regexp.MustCompile(`\[ISO:\s*([^\]]+)\]`)
	scopeTagPattern = regexp.MustCompile(`\[SCOPE:\s*([^\]]+)\]`)
)

// ResolveScope implements the deterministic scope-resolution rule: an
// explicit caller-supplied scope wins; otherwise the query text is
// scanned for the first [ISO: ...] tag, then the first [SCOPE: ...]
// tag; absent both, scope falls back to "global".
func ResolveScope(queryText, explicitScope string) (scope, mode string) {
	if explicitScope != "" {
		return explicitScope, ModeExplicit
	}
	if m := isoTagPattern.FindStringSubmatch(queryText); m != nil {
		return m[1], ModeInferred
	}
	if m := scopeTagPattern.FindStringSubmatch(queryText); m != nil {
		return m[1], ModeInferred
	}
	return defaultScope, ModeGlobal
}
