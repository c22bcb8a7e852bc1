package facade

// staticFacade is the shared shape of every built-in facade: fixed identity
// and schema plus a pure mapping function.
type staticFacade struct {
	provider Provider
	family   Family
	def      Definition
	mapFn    func(args map[string]interface{}) (Params, error)
}

func (f *staticFacade) Provider() Provider     { return f.provider }
func (f *staticFacade) ToolName() string       { return f.def.Name }
func (f *staticFacade) Family() Family         { return f.family }
func (f *staticFacade) Definition() Definition { return f.def }

func (f *staticFacade) MapParams(args map[string]interface{}) (Params, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	return f.mapFn(args)
}

// Builtin returns every facade shipped with the runtime
func Builtin() []Facade {
	return []Facade{
		ClaudeLs(), GeminiListDirectory(), OpenAIListDirectory(), ZAIListDir(),
		ClaudeBash(), GeminiRunShellCommand(), OpenAIShell(), ZAIRunCommand(),
		ClaudeRead(), ClaudeWrite(), ClaudeEdit(),
		GeminiReadFile(), GeminiWriteFile(), GeminiReplace(),
		OpenAIReadFile(), OpenAIWriteFile(), OpenAIEditFile(),
		ZAIReadFile(), ZAIWriteFile(), ZAIEditFile(),
		ClaudeGrep(), ClaudeGlob(), GeminiSearchFileContent(), GeminiGlob(),
		ZAIGrepFiles(), ZAIFindFiles(),
		ClaudeWebSearch(), GeminiGoogleWebSearch(), GeminiWebFetch(), GeminiCaptureScreenshot(),
		OpenAIWebSearch(),
	}
}
