package facade

const lsDescription = "List directory contents with file metadata (permissions, size, modification time)"

func mapLs(fields ...string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		return LsList{Path: optionalString(args, fields...)}, nil
	}
}

// ClaudeLs exposes directory listing as Claude's LS tool
func ClaudeLs() Facade {
	return &staticFacade{
		provider: Claude,
		family:   FamilyLs,
		def: Definition{
			Name:        "LS",
			Description: lsDescription,
			Parameters: object(props{
				"path": str("Directory to list (optional, defaults to current directory)"),
			}),
		},
		mapFn: mapLs("path"),
	}
}

// GeminiListDirectory maps Gemini's list_directory with a flat {path} schema
func GeminiListDirectory() Facade {
	return &staticFacade{
		provider: Gemini,
		family:   FamilyLs,
		def: Definition{
			Name:        "list_directory",
			Description: lsDescription,
			Parameters: object(props{
				"path": str("Directory to list (optional, defaults to current directory)"),
			}),
		},
		mapFn: mapLs("path"),
	}
}

// OpenAIListDirectory maps OpenAI's list_directory. The directory may arrive
// as dir_path or path; dir_path wins when both are set.
func OpenAIListDirectory() Facade {
	return &staticFacade{
		provider: OpenAI,
		family:   FamilyLs,
		def: Definition{
			Name:        "list_directory",
			Description: lsDescription,
			Parameters: object(props{
				"dir_path": str("Directory to list, relative or absolute (optional)"),
				"path":     str("Alias for dir_path"),
			}),
		},
		mapFn: mapLs("dir_path", "path"),
	}
}

// ZAIListDir maps GLM's list_dir with a strict schema and explicit default
func ZAIListDir() Facade {
	return &staticFacade{
		provider: ZAI,
		family:   FamilyLs,
		def: Definition{
			Name:        "list_dir",
			Description: "List directory contents. Returns file/directory names with metadata (size, modification time). Defaults to current directory if path not specified.",
			Parameters: strictObject(props{
				"path": strDefault("Directory path to list (relative or absolute). Defaults to current directory.", "."),
			}),
		},
		mapFn: mapLs("path"),
	}
}
