package logparse

import (
	"errors"
	"fmt"
	"regexp"

	"logsite/internal/services"
	"logsite/internal/sites"
)

type compiledRule struct {
	filenames *regexp.Regexp
	match     *regexp.Regexp
	find      *regexp.Regexp
	replace   string
}

func compileRule(rule sites.TransformRule) (compiledRule, error) {
	var (
		out compiledRule
		err error
	)
	if out.filenames, err = compileOptional(rule.Filenames); err != nil {
		return compiledRule{}, err
	}
	if out.match, err = compileOptional(rule.Match); err != nil {
		return compiledRule{}, err
	}
	if out.find, err = compileOptional(rule.Find); err != nil {
		return compiledRule{}, err
	}
	out.replace = rule.Replace
	return out, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("transform pattern %q: %w", pattern, err)
	}
	return rx, nil
}

// ValidateRules compiles every rule and reports the invalid ones as
// services.ErrValidation.
func ValidateRules(rules []sites.TransformRule) error {
	var errs []error
	for _, rule := range rules {
		if _, err := compileRule(rule); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "logparse", "transform", "invalid transform rule", errors.Join(errs...))
}

// ApplyRules runs the rules in order over lines of the named file. A rule
// whose filename pattern does not match name is skipped. Lines not matching a
// rule's match pattern pass through; matching lines are rewritten with find
// and replace, replaced outright, or dropped when replace is empty.
func ApplyRules(rules []sites.TransformRule, name string, lines []string) ([]string, error) {
	if len(rules) == 0 {
		return lines, nil
	}
	for _, rule := range rules {
		compiled, err := compileRule(rule)
		if err != nil {
			continue
		}
		lines = compiled.apply(name, lines)
	}
	return lines, ValidateRules(rules)
}

func (r compiledRule) apply(name string, lines []string) []string {
	if r.filenames != nil && !r.filenames.MatchString(name) {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case r.match != nil && !r.match.MatchString(line):
			out = append(out, line)
		case r.find != nil:
			out = append(out, r.find.ReplaceAllString(line, r.replace))
		case r.replace != "":
			out = append(out, r.replace)
		}
	}
	return out
}
