package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/mezonai/starnotary/errors"
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// ValidateRequired rejects a blank field.
func ValidateRequired(fieldName, fieldValue string) error {
	if strings.TrimSpace(fieldValue) == "" {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgMissingField, fieldName),
		)
	}
	return nil
}

// ValidateShortTextLength validates short text field length
func ValidateShortTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxShortTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgShortTextTooLong, MaxShortTextLength, fieldName),
		)
	}
	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, fieldName),
		)
	}
	return nil
}

// ValidateStory checks the decoded story: valid UTF-8, at most maxBytes once
// NFC normalized, and free of injection patterns.
func ValidateStory(story string, maxBytes int) error {
	if !utf8.ValidString(story) {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, StoryField),
		)
	}
	normalized := norm.NFC.String(story)
	if len(normalized) > maxBytes {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgStoryTooLong, maxBytes),
		)
	}
	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, StoryField),
		)
	}
	return nil
}
