package capture

import "regexp"

// RedactionPattern is one entry in the ordered secret-redaction list.
// Exposed as data (per the extensibility guidance) rather than inline
// string literals scattered through the redaction function.
type RedactionPattern struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// redactionPatterns is the fixed, ordered list applied by Redact. Order
// matters: more specific patterns (PEM blocks) run before looser ones
// so a key embedded in a larger block is not partially redacted twice.
var redactionPatterns = []RedactionPattern{
	{
		// PEM-encoded private key blocks (RSA/EC/generic/OpenSSH).
		Name:    "pem_private_key",
		Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |)PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |OPENSSH |)PRIVATE KEY-----`),
		Replace: "[REDACTED:pem_private_key]",
	},
	{
		// OpenAI-style secret keys (sk-..., sk-proj-...).
		Name:    "openai_api_key",
		Pattern: regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_-]{16,}\b`),
		Replace: "[REDACTED:openai_api_key]",
	},
	{
		// AWS access key IDs.
		Name:    "aws_access_key",
		Pattern: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
		Replace: "[REDACTED:aws_access_key]",
	},
	{
		// GitHub personal/app/fine-grained tokens.
		Name:    "github_token",
		Pattern: regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
		Replace: "[REDACTED:github_token]",
	},
	{
		// GitLab personal access tokens.
		Name:    "gitlab_token",
		Pattern: regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20,}\b`),
		Replace: "[REDACTED:gitlab_token]",
	},
	{
		// Slack bot/user/app tokens.
		Name:    "slack_token",
		Pattern: regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
		Replace: "[REDACTED:slack_token]",
	},
	{
		// Bearer tokens in Authorization headers or inline text.
		Name:    "bearer_token",
		Pattern: regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]{10,}\b`),
		Replace: "Bearer [REDACTED:bearer_token]",
	},
	{
		// Generic JWT-shaped three-part base64url tokens.
		Name:    "jwt",
		Pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`),
		Replace: "[REDACTED:jwt]",
	},
}

// Redact applies the ordered redaction pattern list and returns a new
// string; the original is never persisted. Redact is idempotent:
// Redact(Redact(s)) == Redact(s), since replacement text never matches
// an original pattern.
func Redact(s string) string {
	out := s
	for _, p := range redactionPatterns {
		out = p.Pattern.ReplaceAllString(out, p.Replace)
	}
	return out
}

// ContainsSecret reports whether s matches any redaction pattern,
// without modifying it. Auto-capture uses this to reject a candidate
// outright rather than store a redacted remainder.
func ContainsSecret(s string) bool {
	for _, p := range redactionPatterns {
		if p.Pattern.MatchString(s) {
			return true
		}
	}
	return false
}
