package facade

type fileFields struct {
	path      string
	content   string
	oldString string
	newString string
}

var snakeFields = fileFields{path: "file_path", content: "content", oldString: "old_string", newString: "new_string"}

func mapRead(tool string, f fileFields) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		path, err := requiredString(args, f.path, tool)
		if err != nil {
			return nil, err
		}
		return FileRead{
			FilePath: path,
			Offset:   optionalUint(args, "offset"),
			Limit:    optionalUint(args, "limit"),
		}, nil
	}
}

func mapWrite(tool string, f fileFields) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		path, err := requiredString(args, f.path, tool)
		if err != nil {
			return nil, err
		}
		content, err := presentString(args, f.content, tool)
		if err != nil {
			return nil, err
		}
		return FileWrite{FilePath: path, Content: content}, nil
	}
}

func mapEdit(tool string, f fileFields) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		path, err := requiredString(args, f.path, tool)
		if err != nil {
			return nil, err
		}
		oldString, err := requiredString(args, f.oldString, tool)
		if err != nil {
			return nil, err
		}
		newString, err := presentString(args, f.newString, tool)
		if err != nil {
			return nil, err
		}
		return FileEdit{FilePath: path, OldString: oldString, NewString: newString}, nil
	}
}

func readSchema(f fileFields, strict bool) map[string]interface{} {
	p := props{
		f.path:   str("The absolute path to the file to read"),
		"offset": integer("Line offset to start reading from (optional)"),
		"limit":  integer("Maximum number of lines to read (optional)"),
	}
	if strict {
		return strictObject(p, f.path)
	}
	return object(p, f.path)
}

func writeSchema(f fileFields, strict bool) map[string]interface{} {
	p := props{
		f.path:    str("The absolute path to the file to write"),
		f.content: str("The content to write to the file"),
	}
	if strict {
		return strictObject(p, f.path, f.content)
	}
	return object(p, f.path, f.content)
}

func editSchema(f fileFields, strict bool) map[string]interface{} {
	p := props{
		f.path:      str("The absolute path to the file to edit"),
		f.oldString: str("The exact text to find and replace"),
		f.newString: str("The replacement text"),
	}
	if strict {
		return strictObject(p, f.path, f.oldString, f.newString)
	}
	return object(p, f.path, f.oldString, f.newString)
}

func fileFacade(p Provider, name, desc string, schema map[string]interface{}, mapFn func(map[string]interface{}) (Params, error)) Facade {
	return &staticFacade{
		provider: p,
		family:   FamilyFile,
		def:      Definition{Name: name, Description: desc, Parameters: schema},
		mapFn:    mapFn,
	}
}

// ClaudeRead exposes file reads as Claude's Read tool
func ClaudeRead() Facade {
	return fileFacade(Claude, "Read", "Read a file from the local filesystem",
		readSchema(snakeFields, false), mapRead("Read", snakeFields))
}

// ClaudeWrite exposes file writes as Claude's Write tool
func ClaudeWrite() Facade {
	return fileFacade(Claude, "Write", "Write a file to the local filesystem",
		writeSchema(snakeFields, false), mapWrite("Write", snakeFields))
}

// ClaudeEdit exposes exact string replacement as Claude's Edit tool
func ClaudeEdit() Facade {
	return fileFacade(Claude, "Edit", "Perform an exact string replacement in a file",
		editSchema(snakeFields, false), mapEdit("Edit", snakeFields))
}

func GeminiReadFile() Facade {
	return fileFacade(Gemini, "read_file", "Read the contents of a file from the filesystem",
		readSchema(snakeFields, false), mapRead("read_file", snakeFields))
}

func GeminiWriteFile() Facade {
	return fileFacade(Gemini, "write_file", "Write content to a file on the filesystem",
		writeSchema(snakeFields, false), mapWrite("write_file", snakeFields))
}

// GeminiReplace maps Gemini's replace tool onto an edit
func GeminiReplace() Facade {
	return fileFacade(Gemini, "replace", "Replace text in a file",
		editSchema(snakeFields, false), mapEdit("replace", snakeFields))
}

var openAIFields = fileFields{path: "path", content: "content", oldString: "old_text", newString: "new_text"}

func OpenAIReadFile() Facade {
	return fileFacade(OpenAI, "read_file", "Read a text file, optionally a window of lines",
		readSchema(openAIFields, false), mapRead("read_file", openAIFields))
}

func OpenAIWriteFile() Facade {
	return fileFacade(OpenAI, "write_file", "Create or overwrite a file with the given content",
		writeSchema(openAIFields, false), mapWrite("write_file", openAIFields))
}

func OpenAIEditFile() Facade {
	return fileFacade(OpenAI, "edit_file", "Replace one exact occurrence of old_text with new_text",
		editSchema(openAIFields, false), mapEdit("edit_file", openAIFields))
}

func ZAIReadFile() Facade {
	return fileFacade(ZAI, "read_file", "Read file contents. Use offset and limit for large files.",
		readSchema(snakeFields, true), mapRead("read_file", snakeFields))
}

func ZAIWriteFile() Facade {
	return fileFacade(ZAI, "write_file", "Write content to a file, creating it if needed.",
		writeSchema(snakeFields, true), mapWrite("write_file", snakeFields))
}

func ZAIEditFile() Facade {
	return fileFacade(ZAI, "edit_file", "Replace exact text in a file. old_string must match exactly once.",
		editSchema(snakeFields, true), mapEdit("edit_file", snakeFields))
}
