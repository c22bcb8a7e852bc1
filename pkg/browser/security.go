package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityValidator checks navigation targets against a SecurityConfig
type SecurityValidator struct {
	config SecurityConfig
	logger zerolog.Logger
}

// NewSecurityValidator creates a validator that logs violations to logger
func NewSecurityValidator(config SecurityConfig, logger zerolog.Logger) *SecurityValidator {
	return &SecurityValidator{
		config: config,
		logger: logger,
	}
}

// ValidateURL rejects malformed URLs and anything the policy forbids
func (sv *SecurityValidator) ValidateURL(urlStr string) error {
	parsedURL, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil || parsedURL.Scheme == "" {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("Invalid URL format: %s", urlStr),
		}
	}

	switch parsedURL.Scheme {
	case "http", "https":
	case "file":
		if !sv.config.AllowFileUrls {
			return sv.violation("file_url_blocked", urlStr, "file:// URLs are not allowed", nil)
		}
		return nil
	default:
		return sv.violation("scheme_blocked", urlStr,
			fmt.Sprintf("Unsupported URL scheme: %s", parsedURL.Scheme), nil)
	}

	host := hostname(parsedURL.Host)
	if isLocalhost(host) && !sv.config.AllowLocalhostUrls {
		return sv.violation("localhost_url_blocked", urlStr, "localhost URLs are not allowed", nil)
	}

	if len(sv.config.AllowedDomains) > 0 && !matchAny(host, sv.config.AllowedDomains) {
		return sv.violation("domain_not_allowed", urlStr,
			fmt.Sprintf("Domain not in allowed list: %s", host), map[string]interface{}{"domain": host})
	}
	if matchAny(host, sv.config.BlockedDomains) {
		return sv.violation("domain_blocked", urlStr,
			fmt.Sprintf("Domain is blocked: %s", host), map[string]interface{}{"domain": host})
	}

	return nil
}

func (sv *SecurityValidator) violation(kind, urlStr, message string, details map[string]interface{}) error {
	sv.logger.Warn().Str("violation", kind).Str("url", urlStr).Msg("Browser security violation")

	if details == nil {
		details = map[string]interface{}{}
	}
	details["url"] = urlStr
	return &BrowserError{Code: ErrCodeSecurity, Message: message, Details: details}
}

func hostname(host string) string {
	host = strings.ToLower(host)
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			return host[1:end]
		}
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 && strings.Count(host, ":") == 1 {
		host = host[:idx]
	}
	return host
}

func isLocalhost(host string) bool {
	return host == "localhost" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasSuffix(host, ".localhost")
}

func matchAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if matchDomain(host, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// matchDomain supports exact hosts, "*.example.com" and ".example.com"
func matchDomain(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[2:]
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern) || host == pattern[1:]
	}
	return false
}
