// Package citation turns the free-text attribution strings returned by the
// LLM service into structured sources, and derives document lists and session
// types from text. Every function here is total: malformed input degrades to a
// fallback value and never produces an error.
package citation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gopherai-workspace/internal/model"
)

var (
	contextPrefixRe = regexp.MustCompile(`^\s*Context\s+\d+\s*:\s*`)
	contextPageRe   = regexp.MustCompile(`^\s*Context\s+\d+\s*:\s*(.+?)\s+page\s+(\d+)\b`)
	pageRe          = regexp.MustCompile(`(?i)\bpage\s+(\d+)\b`)
	absoluteURLRe   = regexp.MustCompile(`https?://[^\s"'<>]+`)
	sourceFileRe    = regexp.MustCompile(`(?i)[A-Za-z0-9_\-.]*[A-Za-z0-9_\-]\.pdf\b`)
	historyFileRe   = regexp.MustCompile(`[a-zA-Z0-9_-]+\.pdf`)
	schemeRe        = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.\-]*://`)
)

const urlTrailingPunct = ".,;:!?)]}"

// NewID generates source ids. Tests replace it for deterministic output.
var NewID = func() string { return uuid.NewString() }

// ParseSources converts raw attribution strings into sources. The output has
// exactly one entry per input, in input order.
func ParseSources(raw []string) []model.Source {
	out := make([]model.Source, len(raw))
	for i, entry := range raw {
		out[i] = ParseSource(i, entry)
	}
	return out
}

// ParseSource parses a single entry. index feeds the synthetic file label used
// when neither a URL nor a document name can be recovered.
func ParseSource(index int, entry string) model.Source {
	src := model.Source{
		ID:      NewID(),
		Summary: entry,
		File:    fmt.Sprintf("document_%d", index),
	}

	if link := firstURL(entry); link != "" {
		src.File = link
		src.Page = findPage(entry)
		return src
	}

	if m := contextPageRe.FindStringSubmatch(entry); m != nil {
		if name := strings.TrimSpace(m[1]); IsDocumentName(name) {
			src.File = name
			src.Page = atoiPtr(m[2])
			return src
		}
	}

	body := contextPrefixRe.ReplaceAllString(entry, "")
	if name := sourceFileRe.FindString(body); name != "" {
		src.File = name
	}
	src.Page = findPage(entry)
	return src
}

// InferDocuments scans response texts for absolute URLs and PDF filenames.
// Results are deduplicated by exact match in order of first appearance. URLs
// that point at a PDF are left to the filename pass.
func InferDocuments(texts []string) []string {
	docs := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(doc string) {
		if doc == "" {
			return
		}
		if _, ok := seen[doc]; ok {
			return
		}
		seen[doc] = struct{}{}
		docs = append(docs, doc)
	}

	for _, text := range texts {
		for _, match := range absoluteURLRe.FindAllString(text, -1) {
			link := trimURL(match)
			if strings.HasSuffix(strings.ToLower(link), ".pdf") {
				continue
			}
			add(link)
		}
		for _, match := range historyFileRe.FindAllString(text, -1) {
			add(match)
		}
	}
	return docs
}

// ClassifySessionType derives the session type from a document list. A list
// holding both PDFs and URLs is classified as pdf.
func ClassifySessionType(docs []string) model.SessionType {
	hasPDF, hasURL := false, false
	for _, doc := range docs {
		switch {
		case IsDocumentName(doc):
			hasPDF = true
		case IsURL(doc):
			hasURL = true
		}
	}
	switch {
	case hasPDF:
		return model.SessionPDF
	case hasURL:
		return model.SessionURL
	default:
		return model.SessionEmpty
	}
}

func IsDocumentName(doc string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(doc)), ".pdf")
}

func IsURL(doc string) bool {
	lower := strings.ToLower(strings.TrimSpace(doc))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// NormalizeURL trims raw, defaults the scheme to https and rejects anything
// that is not an absolute http(s) URL with a host.
func NormalizeURL(raw string) (string, bool) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", false
	}
	if !schemeRe.MatchString(candidate) {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", false
	}
	return candidate, true
}

// URLKey is the comparison key for URL duplicate detection: the scheme is
// stripped and case is folded, so http://x, https://x and x collide.
func URLKey(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = schemeRe.ReplaceAllString(trimmed, "")
	return strings.ToLower(trimmed)
}

func SameURL(a, b string) bool {
	return URLKey(a) == URLKey(b)
}

func firstURL(s string) string {
	match := absoluteURLRe.FindString(s)
	if match == "" {
		return ""
	}
	return trimURL(match)
}

func trimURL(s string) string {
	return strings.TrimRight(s, urlTrailingPunct)
}

func findPage(s string) *int {
	m := pageRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return atoiPtr(m[1])
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
