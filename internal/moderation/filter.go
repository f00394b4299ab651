// Package moderation detects chat messages that try to move a deal off the platform.
package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`\b\d{2,3}[-.\s]?\d{4,5}[-.\s]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
)

const (
	ReasonPhone = "phone number detected"
	ReasonEmail = "email address detected"
)

// Result is the outcome of evaluating one message.
type Result struct {
	Flagged bool
	Reason  string
}

// Filter is safe for concurrent use; it holds no mutable state.
type Filter struct {
	keywords []string
}

// NewFilter lowercases and de-duplicates keywords, keeping their order.
func NewFilter(keywords []string) *Filter {
	seen := make(map[string]bool, len(keywords))
	f := &Filter{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		f.keywords = append(f.keywords, k)
	}
	return f
}

func (f *Filter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Evaluate scans keywords first, then phone and email shapes. The first match wins.
func (f *Filter) Evaluate(text string) Result {
	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return Result{Flagged: true, Reason: KeywordReason(k)}
		}
	}
	if phonePattern.MatchString(text) {
		return Result{Flagged: true, Reason: ReasonPhone}
	}
	if emailPattern.MatchString(text) {
		return Result{Flagged: true, Reason: ReasonEmail}
	}
	return Result{}
}

func KeywordReason(keyword string) string {
	return fmt.Sprintf("suspicious keyword detected: '%s'", keyword)
}
