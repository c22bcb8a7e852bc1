package facade

func mapGrep(tool string, pathFields ...string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		pattern, err := requiredString(args, "pattern", tool)
		if err != nil {
			return nil, err
		}
		return SearchGrep{Pattern: pattern, Path: optionalString(args, pathFields...)}, nil
	}
}

func mapGlob(tool string, pathFields ...string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		pattern, err := requiredString(args, "pattern", tool)
		if err != nil {
			return nil, err
		}
		return SearchGlob{Pattern: pattern, Path: optionalString(args, pathFields...)}, nil
	}
}

func searchFacade(p Provider, name, desc string, schema map[string]interface{}, mapFn func(map[string]interface{}) (Params, error)) Facade {
	return &staticFacade{
		provider: p,
		family:   FamilySearch,
		def:      Definition{Name: name, Description: desc, Parameters: schema},
		mapFn:    mapFn,
	}
}

func ClaudeGrep() Facade {
	return searchFacade(Claude, "Grep", "Search file contents with a regular expression",
		object(props{
			"pattern": str("The regular expression to search for"),
			"path":    str("File or directory to search in (defaults to current directory)"),
		}, "pattern"),
		mapGrep("Grep", "path"))
}

func ClaudeGlob() Facade {
	return searchFacade(Claude, "Glob", "Find files by glob pattern such as **/*.go",
		object(props{
			"pattern": str("The glob pattern to match files against"),
			"path":    str("Directory to search in (defaults to current directory)"),
		}, "pattern"),
		mapGlob("Glob", "path"))
}

func GeminiSearchFileContent() Facade {
	return searchFacade(Gemini, "search_file_content", "Search for text patterns in file contents using regex",
		object(props{
			"pattern":  str("The regex pattern to search for"),
			"dir_path": str("Directory or file to search in (optional, defaults to current directory)"),
		}, "pattern"),
		mapGrep("search_file_content", "dir_path"))
}

func GeminiGlob() Facade {
	return searchFacade(Gemini, "glob", "Find files matching a glob pattern",
		object(props{
			"pattern":  str("The glob pattern to match"),
			"dir_path": str("Directory to search in (optional, defaults to current directory)"),
		}, "pattern"),
		mapGlob("glob", "dir_path"))
}

func ZAIGrepFiles() Facade {
	return searchFacade(ZAI, "grep_files", "Search file contents by regex. Returns matching lines with file paths.",
		strictObject(props{
			"pattern": str("Regex pattern to search for"),
			"path":    strDefault("Directory or file to search in", "."),
		}, "pattern"),
		mapGrep("grep_files", "path"))
}

func ZAIFindFiles() Facade {
	return searchFacade(ZAI, "find_files", "Find files by glob pattern. Returns matching file paths.",
		strictObject(props{
			"pattern": str("Glob pattern such as **/*.go"),
			"path":    strDefault("Directory to search in", "."),
		}, "pattern"),
		mapGlob("find_files", "path"))
}
