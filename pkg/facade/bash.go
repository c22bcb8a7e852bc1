package facade

func mapBash(tool string) func(map[string]interface{}) (Params, error) {
	return func(args map[string]interface{}) (Params, error) {
		cmd, err := requiredString(args, "command", tool)
		if err != nil {
			return nil, err
		}
		return BashExecute{Command: cmd}, nil
	}
}

// ClaudeBash exposes shell execution as Claude's Bash tool
func ClaudeBash() Facade {
	return &staticFacade{
		provider: Claude,
		family:   FamilyBash,
		def: Definition{
			Name:        "Bash",
			Description: "Execute a bash command and return its output",
			Parameters: object(props{
				"command": str("The command to execute"),
			}, "command"),
		},
		mapFn: mapBash("Bash"),
	}
}

// GeminiRunShellCommand maps Gemini's run_shell_command
func GeminiRunShellCommand() Facade {
	return &staticFacade{
		provider: Gemini,
		family:   FamilyBash,
		def: Definition{
			Name:        "run_shell_command",
			Description: "Execute a shell command and return the output",
			Parameters: object(props{
				"command": str("The shell command to execute"),
			}, "command"),
		},
		mapFn: mapBash("run_shell_command"),
	}
}

// OpenAIShell maps OpenAI's shell tool
func OpenAIShell() Facade {
	return &staticFacade{
		provider: OpenAI,
		family:   FamilyBash,
		def: Definition{
			Name:        "shell",
			Description: "Run a shell command in the workspace and return stdout and stderr",
			Parameters: object(props{
				"command": str("The shell command to run"),
			}, "command"),
		},
		mapFn: mapBash("shell"),
	}
}

// ZAIRunCommand maps GLM's run_command
func ZAIRunCommand() Facade {
	return &staticFacade{
		provider: ZAI,
		family:   FamilyBash,
		def: Definition{
			Name:        "run_command",
			Description: "Run a shell command. Returns combined stdout and stderr.",
			Parameters: strictObject(props{
				"command": str("Shell command to execute"),
			}, "command"),
		},
		mapFn: mapBash("run_command"),
	}
}
