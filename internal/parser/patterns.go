package parser

import (
	"fmt"
	"regexp"
	"strconv"
)

// Locale selects the wording of the renewal daemon's messages
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleRussian Locale = "ru"
)

type patternSet struct {
	renewal    string
	failure    string
	dailyTotal string
}

var builtinPatterns = map[Locale]patternSet{
	LocaleEnglish: {
		renewal:    `^renewal update for user id:\s*(\d+)`,
		failure:    `^error for user id:\s*(\d+)`,
		dailyTotal: `^Today\s*(\d{4}-\d{2}-\d{2}).*subscriptions:\s*(\d+)$`,
	},
	LocaleRussian: {
		renewal: `^Обновляем подписку пользователю id:\s*(\d+)`,
		failure: `^У пользователя с id:\s*(\d+)`,
		// Production logs spell the first letter with a Latin C
		dailyTotal: `^[CС]егодня\s*(\d{4}-\d{2}-\d{2}).*подписки:\s*(\d+)$`,
	},
}

// PatternOverrides replaces individual built-in message patterns
type PatternOverrides struct {
	Renewal    string
	Failure    string
	DailyTotal string
}

// Patterns recognises the messages that matter for renewal reporting
type Patterns struct {
	Renewal    *regexp.Regexp // Captures the user id
	Failure    *regexp.Regexp // Captures the user id
	DailyTotal *regexp.Regexp // Captures the date and the processed counter
}

// NewPatterns compiles the message patterns for a locale, applying overrides
func NewPatterns(locale Locale, overrides PatternOverrides) (*Patterns, error) {
	set, ok := builtinPatterns[locale]
	if !ok {
		return nil, fmt.Errorf("unknown locale: %s", locale)
	}

	if overrides.Renewal != "" {
		set.renewal = overrides.Renewal
	}
	if overrides.Failure != "" {
		set.failure = overrides.Failure
	}
	if overrides.DailyTotal != "" {
		set.dailyTotal = overrides.DailyTotal
	}

	renewal, err := compileGroups("renewal", set.renewal, 1)
	if err != nil {
		return nil, err
	}
	failure, err := compileGroups("failure", set.failure, 1)
	if err != nil {
		return nil, err
	}
	dailyTotal, err := compileGroups("daily_total", set.dailyTotal, 2)
	if err != nil {
		return nil, err
	}

	return &Patterns{
		Renewal:    renewal,
		Failure:    failure,
		DailyTotal: dailyTotal,
	}, nil
}

// MustPatterns is like NewPatterns without overrides and panics on error.
// Intended for the built-in locales.
func MustPatterns(locale Locale) *Patterns {
	p, err := NewPatterns(locale, PatternOverrides{})
	if err != nil {
		panic(err)
	}
	return p
}

func compileGroups(name, expr string, groups int) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s pattern: %w", name, err)
	}
	if re.NumSubexp() < groups {
		return nil, fmt.Errorf("%s pattern needs %d capture groups, has %d", name, groups, re.NumSubexp())
	}
	return re, nil
}

// RenewalUser returns the user id of a renewal-start message
func (p *Patterns) RenewalUser(message string) (string, bool) {
	return firstGroup(p.Renewal, message)
}

// FailureUser returns the user id of a renewal error message
func (p *Patterns) FailureUser(message string) (string, bool) {
	return firstGroup(p.Failure, message)
}

// DailyTotalOf extracts the date key and processed counter from a daily summary message
func (p *Patterns) DailyTotalOf(message string) (string, int, bool) {
	m := p.DailyTotal.FindStringSubmatch(message)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
