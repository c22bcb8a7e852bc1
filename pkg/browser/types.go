package browser

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultNavigationTimeout bounds a page load when Config leaves it unset
const DefaultNavigationTimeout = 30 * time.Second

// Config configures the headless browser used by the web tools
type Config struct {
	Logger zerolog.Logger

	// ControlURL attaches to a running Chrome over CDP. When empty a browser
	// is launched on first use.
	ControlURL string

	Headless    bool
	NoSandbox   bool
	ChromePath  string
	UserDataDir string

	NavigationTimeout time.Duration

	// ScreenshotDir receives screenshots saved without an explicit path
	ScreenshotDir string

	Security SecurityConfig
}

// SecurityConfig holds URL restrictions applied before every navigation
type SecurityConfig struct {
	AllowFileUrls      bool     `json:"allowFileUrls" mapstructure:"allow_file_urls"`
	AllowLocalhostUrls bool     `json:"allowLocalhostUrls" mapstructure:"allow_localhost_urls"`
	AllowedDomains     []string `json:"allowedDomains,omitempty" mapstructure:"allowed_domains"`
	BlockedDomains     []string `json:"blockedDomains,omitempty" mapstructure:"blocked_domains"`
}

// SearchResult is one web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Link represents an anchor element
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// PageContent is the readable content of a loaded page
type PageContent struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
	Links       []Link `json:"links,omitempty"`
}

// BrowserError is a failure with a stable code
type BrowserError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNavigation      = "NAVIGATION_ERROR"
	ErrCodeTimeout         = "TIMEOUT_ERROR"
	ErrCodeScriptExecution = "SCRIPT_EXECUTION_ERROR"
	ErrCodeSecurity        = "SECURITY_ERROR"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
)
