package facade

import (
	"net/url"
	"strings"
)

var webActions = []string{"search", "open_page", "find_in_page", "capture_screenshot"}

func requiredURL(args map[string]interface{}, tool string) (string, error) {
	raw, err := requiredString(args, "url", tool)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", validationError(tool, "URL must start with http:// or https://")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", validationError(tool, "invalid URL %q", raw)
	}
	return raw, nil
}

// mapWebAction maps the flat action_type dispatch shape onto web params.
func mapWebAction(tool string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		action, err := requiredString(args, "action_type", tool)
		if err != nil {
			return nil, err
		}

		switch action {
		case "search":
			query, err := requiredString(args, "query", tool)
			if err != nil {
				return nil, err
			}
			return WebSearch{Query: query}, nil
		case "open_page":
			u, err := requiredURL(args, tool)
			if err != nil {
				return nil, err
			}
			return WebOpenPage{URL: u}, nil
		case "find_in_page":
			u, err := requiredURL(args, tool)
			if err != nil {
				return nil, err
			}
			pattern, err := requiredString(args, "pattern", tool)
			if err != nil {
				return nil, err
			}
			return WebFindInPage{URL: u, Pattern: pattern}, nil
		case "capture_screenshot":
			return mapScreenshot(tool)(args)
		default:
			return nil, validationError(tool, "unknown action_type %q", action)
		}
	}
}

func mapScreenshot(tool string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		u, err := requiredURL(args, tool)
		if err != nil {
			return nil, err
		}
		return WebCaptureScreenshot{
			URL:        u,
			OutputPath: optionalString(args, "output_path"),
			FullPage:   optionalBool(args, "full_page"),
		}, nil
	}
}

func webActionSchema() map[string]interface{} {
	return object(props{
		"action_type": enum("The type of web action to perform", webActions...),
		"query":       str("Search query (required for 'search' action)"),
		"url":         str("URL to open, search within, or capture (required for 'open_page', 'find_in_page', and 'capture_screenshot' actions)"),
		"pattern":     str("Pattern to find in page (required for 'find_in_page' action)"),
		"output_path": str("File path to save screenshot. If not provided, saves to temp directory (optional for 'capture_screenshot' action)"),
		"full_page":   boolean("If true, captures entire scrollable page. If false (default), captures visible viewport only (optional for 'capture_screenshot' action)"),
	}, "action_type")
}

func webFacade(p Provider, name, desc string, schema map[string]interface{}, mapFn func(map[string]interface{}) (Params, error)) Facade {
	return &staticFacade{
		provider: p,
		family:   FamilyWeb,
		def:      Definition{Name: name, Description: desc, Parameters: schema},
		mapFn:    mapFn,
	}
}

// ClaudeWebSearch exposes all web actions through one action_type tool
func ClaudeWebSearch() Facade {
	return webFacade(Claude, "web_search", "Search the web, open pages, find text in pages, or capture screenshots",
		webActionSchema(), mapWebAction("web_search"))
}

// OpenAIWebSearch uses the same flat action_type shape as Claude
func OpenAIWebSearch() Facade {
	return webFacade(OpenAI, "web_search", "Search the web, open pages, find text in pages, or capture screenshots",
		webActionSchema(), mapWebAction("web_search"))
}

func GeminiGoogleWebSearch() Facade {
	return webFacade(Gemini, "google_web_search", "Perform a web search and return results",
		object(props{
			"query": str("The search query"),
		}, "query"),
		func(args map[string]interface{}) (Params, error) {
			query, err := requiredString(args, "query", "google_web_search")
			if err != nil {
				return nil, err
			}
			return WebSearch{Query: query}, nil
		})
}

func GeminiWebFetch() Facade {
	return webFacade(Gemini, "web_fetch", "Fetch and return the content of a web page",
		object(props{
			"url":    str("The URL to fetch content from (must start with http:// or https://)"),
			"format": enum("The format to return the content in (default: markdown)", "text", "markdown", "html"),
		}, "url"),
		func(args map[string]interface{}) (Params, error) {
			u, err := requiredURL(args, "web_fetch")
			if err != nil {
				return nil, err
			}
			return WebOpenPage{URL: u}, nil
		})
}

func GeminiCaptureScreenshot() Facade {
	return webFacade(Gemini, "capture_screenshot", "Capture a screenshot of a web page. Returns the file path to the saved PNG image.",
		object(props{
			"url":         str("The URL of the web page to capture (must start with http:// or https://)"),
			"output_path": str("File path to save the screenshot. If not provided, saves to temp directory"),
			"full_page":   boolean("If true, captures the entire scrollable page. If false (default), captures only the visible viewport"),
		}, "url"),
		mapScreenshot("capture_screenshot"))
}
