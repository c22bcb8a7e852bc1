package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/codelet/internal/tracing"
)

const (
	searchURL     = "https://html.duckduckgo.com/html/?q="
	maxResults    = 10
	maxPageLinks  = 10
	maxMatches    = 10
	matchContext  = 50
	searchScript  = `() => {
		const nodes = document.querySelectorAll('.result, .web-result, [data-testid="result"]');
		return Array.from(nodes).map(el => {
			const a = el.querySelector('.result__a, .result__title a, a[data-testid="result-title-a"], h2 a, a');
			const s = el.querySelector('.result__snippet, .result__body, [data-result="snippet"]');
			return {
				title: a ? a.textContent.trim() : '',
				url: a ? a.href : '',
				snippet: s ? s.textContent.trim() : '',
			};
		});
	}`
	contentScript = `() => {
		const desc = document.querySelector('meta[name="description"]');
		const links = Array.from(document.querySelectorAll('a[href]')).map(a => ({
			href: a.href,
			text: a.textContent.trim(),
		}));
		return {
			url: location.href,
			title: document.title,
			description: desc ? desc.content : '',
			text: document.body ? document.body.innerText : '',
			links: links,
		};
	}`
)

// Browser drives a single Chrome instance over CDP. It connects lazily and
// opens a fresh page per call, so calls from different sessions never share
// page state.
type Browser struct {
	mu       sync.Mutex
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher

	security *SecurityValidator
	logger   zerolog.Logger
}

// New creates a Browser. Nothing is launched until the first call.
func New(cfg Config) *Browser {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	logger := cfg.Logger.With().Str("component", "browser").Logger()
	return &Browser{
		cfg:      cfg,
		security: NewSecurityValidator(cfg.Security, logger),
		logger:   logger,
	}
}

func (b *Browser) connect(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(b.cfg.Headless).
			NoSandbox(b.cfg.NoSandbox)
		if b.cfg.UserDataDir != "" {
			l = l.UserDataDir(b.cfg.UserDataDir)
		}
		if b.cfg.ChromePath != "" {
			l = l.Bin(b.cfg.ChromePath)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, &BrowserError{
				Code:    ErrCodeBrowserCrash,
				Message: fmt.Sprintf("Failed to launch Chrome: %v", err),
			}
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.killLocked()
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to connect to CDP: %v", err),
		}
	}

	b.browser = browser
	b.logger.Info().Bool("launched", b.launcher != nil).Msg("Browser connected")
	return browser, nil
}

// reset drops a broken connection so the next call reconnects
func (b *Browser) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	b.killLocked()
}

func (b *Browser) killLocked() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
}

// Close shuts the browser down. A later call reconnects.
func (b *Browser) Close() error {
	b.reset()
	return nil
}

// withPage loads rawURL in a new page and runs fn on it. A failure to open
// the page is retried once on a fresh connection.
func (b *Browser) withPage(ctx context.Context, op, rawURL string, fn func(*rod.Page) error) error {
	ctx, span := tracing.StartSpan(ctx, "codelet.browser", "browser."+op,
		attribute.String("url", rawURL),
	)
	defer span.End()

	err := b.security.ValidateURL(rawURL)
	if err == nil {
		err = b.runPage(ctx, rawURL, fn)
	}
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

func (b *Browser) runPage(ctx context.Context, rawURL string, fn func(*rod.Page) error) error {
	var page *rod.Page
	for attempt := 0; attempt < 2; attempt++ {
		browser, err := b.connect(ctx)
		if err != nil {
			return err
		}
		page, err = browser.Page(proto.TargetCreateTarget{})
		if err == nil {
			break
		}
		if attempt == 1 || ctx.Err() != nil {
			return &BrowserError{
				Code:    ErrCodeBrowserCrash,
				Message: fmt.Sprintf("Failed to create page: %v", err),
			}
		}
		b.logger.Warn().Err(err).Msg("Browser connection lost, reconnecting")
		b.reset()
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx).Timeout(b.cfg.NavigationTimeout)
	if err := p.Navigate(rawURL); err != nil {
		return classify(ctx, ErrCodeNavigation, "Failed to navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify(ctx, ErrCodeNavigation, "Failed to load page", err)
	}
	return fn(p)
}

func classify(ctx context.Context, code, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		code = ErrCodeTimeout
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &BrowserError{Code: code, Message: fmt.Sprintf("%s: %v", msg, err)}
}

// Search runs a DuckDuckGo query and returns up to ten results
func (b *Browser) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &BrowserError{Code: ErrCodeValidation, Message: "query is required"}
	}

	var raw []SearchResult
	err := b.withPage(ctx, "search", searchURL+url.QueryEscape(query), func(p *rod.Page) error {
		res, err := p.Eval(searchScript)
		if err != nil {
			return classify(ctx, ErrCodeScriptExecution, "Failed to read search results", err)
		}
		return res.Value.Unmarshal(&raw)
	})
	if err != nil {
		return nil, err
	}
	return CleanResults(raw, maxResults), nil
}

// Fetch loads a page and returns its readable content
func (b *Browser) Fetch(ctx context.Context, rawURL string) (*PageContent, error) {
	content := &PageContent{}
	err := b.withPage(ctx, "fetch", rawURL, func(p *rod.Page) error {
		res, err := p.Eval(contentScript)
		if err != nil {
			return classify(ctx, ErrCodeScriptExecution, "Failed to extract page content", err)
		}
		return res.Value.Unmarshal(content)
	})
	if err != nil {
		return nil, err
	}
	content.Links = usefulLinks(content.Links, maxPageLinks)
	return content, nil
}

// FindInPage returns up to ten case-insensitive matches of pattern in the
// page text, each with surrounding context.
func (b *Browser) FindInPage(ctx context.Context, rawURL, pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, &BrowserError{Code: ErrCodeValidation, Message: "pattern is required"}
	}
	content, err := b.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return FindMatches(content.Text, pattern, maxMatches), nil
}

// Screenshot saves a PNG of the page and returns its path. An empty
// outputPath writes into the configured screenshot directory.
func (b *Browser) Screenshot(ctx context.Context, rawURL, outputPath string, fullPage bool) (string, error) {
	if outputPath == "" {
		id, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate screenshot name: %w", err)
		}
		dir := b.cfg.ScreenshotDir
		if dir == "" {
			dir = os.TempDir()
		}
		outputPath = filepath.Join(dir, "screenshot-"+id+".png")
	}

	var data []byte
	err := b.withPage(ctx, "screenshot", rawURL, func(p *rod.Page) error {
		var err error
		data, err = p.Screenshot(fullPage, nil)
		if err != nil {
			return classify(ctx, ErrCodeScriptExecution, "Failed to capture screenshot", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return outputPath, nil
}
