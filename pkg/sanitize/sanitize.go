// Package sanitize provides form.InputFilter implementations backed by
// bluemonday. Filters only touch string input; other values pass through.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy

	richOnce   sync.Once
	richPolicy *bluemonday.Policy
)

// Strict removes every HTML element from string input. Entities are decoded
// afterwards so plain text such as "Tom & Jerry" survives unchanged.
func Strict() form.InputFilter {
	return Policy(strictSanitizer(), true)
}

// RichText keeps basic inline formatting (emphasis, links, lists) and drops
// everything else, including scripts and event handlers.
func RichText() form.InputFilter {
	return Policy(richSanitizer(), false)
}

// Policy adapts a bluemonday policy. Output is trimmed; with unescape set,
// HTML entities in it are decoded.
func Policy(policy *bluemonday.Policy, unescape bool) form.InputFilter {
	return func(_ string, raw any) any {
		s, ok := raw.(string)
		if !ok || s == "" {
			return raw
		}
		cleaned := policy.Sanitize(s)
		if unescape {
			cleaned = html.UnescapeString(cleaned)
		}
		return strings.TrimSpace(cleaned)
	}
}

// Only restricts filter to the given paths and everything below them.
func Only(filter form.InputFilter, paths ...string) form.InputFilter {
	prefixes := make([]fieldpath.Path, 0, len(paths))
	for _, raw := range paths {
		if p, err := fieldpath.Parse(raw); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return func(path string, raw any) any {
		p, err := fieldpath.Parse(path)
		if err != nil {
			return raw
		}
		for _, prefix := range prefixes {
			if p.HasPrefix(prefix) {
				return filter(path, raw)
			}
		}
		return raw
	}
}

// Chain applies filters in order.
func Chain(filters ...form.InputFilter) form.InputFilter {
	return func(path string, raw any) any {
		for _, filter := range filters {
			if filter != nil {
				raw = filter(path, raw)
			}
		}
		return raw
	}
}

func strictSanitizer() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

func richSanitizer() *bluemonday.Policy {
	richOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements("b", "strong", "i", "em", "u", "br", "p", "ul", "ol", "li", "code")
		policy.AllowAttrs("href").OnElements("a")
		policy.AllowStandardURLs()
		policy.RequireNoFollowOnLinks(true)
		richPolicy = policy
	})
	return richPolicy
}
