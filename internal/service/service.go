// Package service contains the business rules of the application.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (business) → validates input, resolves the caller, orchestrates
//	Repository (data)  → reads and writes the database in units of work
//
// Services take repository interfaces, never *sqlstore.Store, so tests can
// pass the hand-written mocks in the _test files.
//
// CALLER IDENTITY:
// Operations that attribute work to a user (creating a conversation, adding
// a post, reading or editing "me") take the caller's user ID as an explicit
// parameter. Services never assume who is calling.
//
// All validation failures are apperror.ValidationFailed with the offending
// field name. The first failing rule wins.
package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/repository"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8

	MaxNameLength = 50 // category, difficulty and tag names

	MinTitleLength       = 3
	MaxTitleLength       = 100
	MinDescriptionLength = 10
	MinItemLength        = 5 // learning objectives and hints
	MinChallengeIDLength = 5
	MaxChallengeIDLength = 20

	MinTopicLength = 3
	MaxTopicLength = 200
)

// listOptions clamps caller paging to sane bounds.
func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// checkLength validates the rune length of value. maxLen 0 means unbounded.
func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		if minLen == 1 {
			return apperror.ValidationFailed(field, field+" is required")
		}
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at least %d characters", field, minLen))
	}
	if maxLen > 0 && n > maxLen {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, maxLen))
	}
	return nil
}

// checkName trims and validates a lookup name.
func checkName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	return name, checkLength(field, name, 1, MaxNameLength)
}

// checkItems validates every entry of a learning-objective or hint list.
func checkItems(field string, items []string) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if utf8.RuneCountInString(item) < MinItemLength {
			return nil, apperror.ValidationFailed(field,
				fmt.Sprintf("%s[%d] must be at least %d characters", field, i, MinItemLength))
		}
		out[i] = item
	}
	return out, nil
}

// checkTags trims every tag name and drops repeats, keeping first-seen order.
func checkTags(tags []string) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		name, err := checkName("tags", tag)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func checkNonNegative(field string, v int) error {
	if v < 0 {
		return apperror.ValidationFailed(field, field+" must be zero or greater")
	}
	return nil
}

func checkNonBlank(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperror.ValidationFailed(field, field+" must not be blank")
	}
	return nil
}

// isAppError reports whether err is a caller-facing error rather than a
// storage failure.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
