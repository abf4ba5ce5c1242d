package policy

import (
	"regexp"
	"strings"
)

const defaultTrivialMinChars = 12

var (
	heartbeatPattern    = regexp.MustCompile(`^heartbeat(_ok)?$`)
	slashCommandPattern = regexp.MustCompile(`^/[\w-]+`)
)

// greetingsAndAcks is the language-agnostic list of short greeting and
// acknowledgement phrases that, at or under trivial_min_chars, mark a
// prompt as trivial. Data, not code, so operators can extend it
// without touching the classifier.
var greetingsAndAcks = []string{
	"hi", "hello", "hey", "yo", "sup",
	"thanks", "thank you", "thx", "ty",
	"ok", "okay", "k", "kk", "cool", "got it", "sounds good",
	"你好", "嗨", "謝謝", "謝了", "好的", "了解", "收到",
	"こんにちは", "ありがとう", "了解です",
}

// IsTrivial classifies query per the trivial-prompt rule: heartbeat
// tokens, slash-commands, emoji-only text, empty-after-stripping text,
// and short greeting/ack phrases are all skipped by auto-recall.
func IsTrivial(query string, trivialMinChars int) bool {
	if trivialMinChars <= 0 {
		trivialMinChars = defaultTrivialMinChars
	}

	normalized := Normalize(query)
	lower := strings.ToLower(normalized)

	if heartbeatPattern.MatchString(lower) {
		return true
	}
	if slashCommandPattern.MatchString(lower) {
		return true
	}
	if isEmojiOnly(normalized) {
		return true
	}

	stripped := stripDecoration(normalized)
	if stripped == "" {
		return true
	}

	if len([]rune(normalized)) <= trivialMinChars {
		for _, phrase := range greetingsAndAcks {
			if lower == phrase {
				return true
			}
		}
	}

	return false
}
