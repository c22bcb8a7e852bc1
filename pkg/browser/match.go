package browser

import (
	"net/url"
	"strings"
)

// ResolveResultURL unwraps DuckDuckGo redirect links
// ("//duckduckgo.com/l/?uddg=<target>") and drops links back into the
// search engine itself. It returns "" for links that are not results.
func ResolveResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

// CleanResults resolves result URLs and drops empty or duplicate hits
func CleanResults(raw []SearchResult, limit int) []SearchResult {
	seen := make(map[string]bool)
	out := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		target := ResolveResultURL(r.URL)
		title := strings.TrimSpace(r.Title)
		if target == "" || title == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, SearchResult{
			Title:   title,
			URL:     target,
			Snippet: strings.Join(strings.Fields(r.Snippet), " "),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func usefulLinks(links []Link, limit int) []Link {
	var out []Link
	for _, l := range links {
		if l.Text == "" || !strings.HasPrefix(l.Href, "http") {
			continue
		}
		out = append(out, Link{Href: l.Href, Text: strings.Join(strings.Fields(l.Text), " ")})
		if len(out) == limit {
			break
		}
	}
	return out
}

// FindMatches returns up to limit case-insensitive occurrences of pattern in
// text, each with up to fifty characters of context on either side. Matches
// never span lines.
func FindMatches(text, pattern string, limit int) []string {
	needle := []rune(strings.ToLower(pattern))
	if len(needle) == 0 {
		return nil
	}

	var matches []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		lower := []rune(strings.ToLower(line))
		if len(lower) != len(runes) {
			// Case folding changed the length; fall back to the folded line.
			runes = lower
		}
		for pos := 0; pos+len(needle) <= len(lower); pos++ {
			if !hasRunesAt(lower, needle, pos) {
				continue
			}
			start := pos - matchContext
			if start < 0 {
				start = 0
			}
			end := pos + len(needle) + matchContext
			if end > len(runes) {
				end = len(runes)
			}
			if ctx := strings.TrimSpace(string(runes[start:end])); ctx != "" {
				matches = append(matches, ctx)
			}
			if len(matches) >= limit {
				return matches
			}
		}
	}
	return matches
}

func hasRunesAt(s, sub []rune, pos int) bool {
	for i, r := range sub {
		if s[pos+i] != r {
			return false
		}
	}
	return true
}
