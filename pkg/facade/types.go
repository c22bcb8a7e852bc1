package facade

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies an LLM provider family
type Provider string

const (
	Claude Provider = "claude"
	Gemini Provider = "gemini"
	OpenAI Provider = "openai"
	ZAI    Provider = "zai"
)

// Providers lists the supported providers in a stable order
var Providers = []Provider{Claude, Gemini, OpenAI, ZAI}

// ParseProvider parses a provider name case-insensitively
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case Claude, Gemini, OpenAI, ZAI:
		return p, nil
	case "anthropic":
		return Claude, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// Family groups facades that map onto the same backend
type Family string

const (
	FamilyLs     Family = "ls"
	FamilyBash   Family = "bash"
	FamilyFile   Family = "file"
	FamilySearch Family = "search"
	FamilyWeb    Family = "web"
)

// Definition is a provider-facing tool definition
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Result is a tool's output handed back to the model
type Result struct {
	Output   string                 `json:"output"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Tool is the generic contract the agent loop calls
type Tool interface {
	Name() string
	Definition() Definition
	Call(ctx context.Context, args map[string]interface{}) (Result, error)
}

// Facade adapts one tool family to one provider's naming and schema.
type Facade interface {
	Provider() Provider
	ToolName() string
	Family() Family
	Definition() Definition
	MapParams(args map[string]interface{}) (Params, error)
}

// Backend executes internal params. It is the underlying tool a Wrapper forwards to.
type Backend interface {
	Execute(ctx context.Context, params Params) (Result, error)
}

// BackendFunc adapts a function to Backend
type BackendFunc func(ctx context.Context, params Params) (Result, error)

func (f BackendFunc) Execute(ctx context.Context, params Params) (Result, error) {
	return f(ctx, params)
}

// Params is the closed set of internal tool arguments. Only the types in
// this package implement it.
type Params interface {
	Family() Family
	Operation() string
	isParams()
}

// LsList lists a directory; nil Path means the working directory
type LsList struct {
	Path *string
}

// BashExecute runs a shell command
type BashExecute struct {
	Command string
}

// FileRead reads a file, optionally a window of lines
type FileRead struct {
	FilePath string
	Offset   *int
	Limit    *int
}

// FileWrite replaces a file's content
type FileWrite struct {
	FilePath string
	Content  string
}

// FileEdit replaces one exact occurrence of OldString
type FileEdit struct {
	FilePath  string
	OldString string
	NewString string
}

// SearchGrep searches file contents with a regular expression
type SearchGrep struct {
	Pattern string
	Path    *string
}

// SearchGlob finds files by glob pattern
type SearchGlob struct {
	Pattern string
	Path    *string
}

// WebSearch runs a web search query
type WebSearch struct {
	Query string
}

// WebOpenPage fetches a page's text
type WebOpenPage struct {
	URL string
}

// WebFindInPage finds a pattern in a page's text
type WebFindInPage struct {
	URL     string
	Pattern string
}

// WebCaptureScreenshot saves a PNG of a page
type WebCaptureScreenshot struct {
	URL        string
	OutputPath *string
	FullPage   bool
}

func (LsList) Family() Family               { return FamilyLs }
func (BashExecute) Family() Family          { return FamilyBash }
func (FileRead) Family() Family             { return FamilyFile }
func (FileWrite) Family() Family            { return FamilyFile }
func (FileEdit) Family() Family             { return FamilyFile }
func (SearchGrep) Family() Family           { return FamilySearch }
func (SearchGlob) Family() Family           { return FamilySearch }
func (WebSearch) Family() Family            { return FamilyWeb }
func (WebOpenPage) Family() Family          { return FamilyWeb }
func (WebFindInPage) Family() Family        { return FamilyWeb }
func (WebCaptureScreenshot) Family() Family { return FamilyWeb }

func (LsList) Operation() string               { return "list" }
func (BashExecute) Operation() string          { return "execute" }
func (FileRead) Operation() string             { return "read" }
func (FileWrite) Operation() string            { return "write" }
func (FileEdit) Operation() string             { return "edit" }
func (SearchGrep) Operation() string           { return "grep" }
func (SearchGlob) Operation() string           { return "glob" }
func (WebSearch) Operation() string            { return "search" }
func (WebOpenPage) Operation() string          { return "open_page" }
func (WebFindInPage) Operation() string        { return "find_in_page" }
func (WebCaptureScreenshot) Operation() string { return "capture_screenshot" }

func (LsList) isParams()               {}
func (BashExecute) isParams()          {}
func (FileRead) isParams()             {}
func (FileWrite) isParams()            {}
func (FileEdit) isParams()             {}
func (SearchGrep) isParams()           {}
func (SearchGlob) isParams()           {}
func (WebSearch) isParams()            {}
func (WebOpenPage) isParams()          {}
func (WebFindInPage) isParams()        {}
func (WebCaptureScreenshot) isParams() {}
