package coretools

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/codelet/pkg/facade"
)

func (t *Tools) executeWeb(ctx context.Context, params facade.Params) (facade.Result, error) {
	web := t.opts.Web
	if web == nil {
		return facade.Result{}, fmt.Errorf("web access is not configured")
	}

	switch p := params.(type) {
	case facade.WebSearch:
		results, err := web.Search(ctx, p.Query)
		if err != nil {
			return facade.Result{}, err
		}
		if len(results) == 0 {
			return facade.Result{Output: "No search results found"}, nil
		}
		entries := make([]string, len(results))
		for i, r := range results {
			entries[i] = fmt.Sprintf("%d. %s\n   URL: %s\n   %s", i+1, r.Title, r.URL, r.Snippet)
		}
		return facade.Result{
			Output:   truncateText(strings.Join(entries, "\n\n")),
			Metadata: map[string]interface{}{"results": len(results)},
		}, nil

	case facade.WebOpenPage:
		page, err := web.Fetch(ctx, p.URL)
		if err != nil {
			return facade.Result{}, err
		}
		var parts []string
		if page.Title != "" {
			parts = append(parts, "# "+page.Title)
		}
		if page.Description != "" {
			parts = append(parts, "*"+page.Description+"*")
		}
		if text := strings.TrimSpace(page.Text); text != "" {
			parts = append(parts, "", text)
		}
		if len(page.Links) > 0 {
			parts = append(parts, "", "## Links found:")
			for _, l := range page.Links {
				parts = append(parts, fmt.Sprintf("- [%s](%s)", l.Text, l.Href))
			}
		}
		return facade.Result{
			Output: fmt.Sprintf("Page content from %s:\n%s", p.URL, truncateText(strings.Join(parts, "\n"))),
		}, nil

	case facade.WebFindInPage:
		matches, err := web.FindInPage(ctx, p.URL, p.Pattern)
		if err != nil {
			return facade.Result{}, err
		}
		var found string
		if len(matches) == 0 {
			found = fmt.Sprintf("Pattern '%s' not found on page", p.Pattern)
		} else {
			lines := []string{fmt.Sprintf("Found %d matches:", len(matches))}
			for i, m := range matches {
				lines = append(lines, fmt.Sprintf("%d. ...%s...", i+1, m))
			}
			found = truncateText(strings.Join(lines, "\n"))
		}
		return facade.Result{
			Output:   fmt.Sprintf("Pattern '%s' search results in %s:\n%s", p.Pattern, p.URL, found),
			Metadata: map[string]interface{}{"matches": len(matches)},
		}, nil

	case facade.WebCaptureScreenshot:
		outputPath := ""
		if p.OutputPath != nil && strings.TrimSpace(*p.OutputPath) != "" {
			resolved, err := t.resolve(ctx, p.OutputPath)
			if err != nil {
				return facade.Result{}, err
			}
			outputPath = resolved
		}
		saved, err := web.Screenshot(ctx, p.URL, outputPath, p.FullPage)
		if err != nil {
			return facade.Result{}, err
		}
		return facade.Result{
			Output:   "Screenshot saved to: " + saved,
			Metadata: map[string]interface{}{"path": saved},
		}, nil

	default:
		return facade.Result{}, unsupported(params)
	}
}

func truncateText(text string) string {
	return truncateItems(strings.Split(text, "\n"), "lines", 0)
}
