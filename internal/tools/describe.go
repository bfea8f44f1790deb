package tools

import (
	"fmt"
	"os"
)

// Approval-prompt formatters for the built-in interrupting tools. Each takes
// the raw tool arguments and renders what the user is being asked to allow.

func DescribeShellAction(args map[string]any) string {
	command, _ := args["command"].(string)
	dir, _ := args["working_dir"].(string)
	if dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}
	}
	return fmt.Sprintf("Shell command: %s\nWorking directory: %s", command, dir)
}

func DescribeWriteFileAction(args map[string]any) string {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	return fmt.Sprintf("Write file: %s (%d bytes)", path, len(content))
}

func DescribeEditFileAction(args map[string]any) string {
	path, _ := args["path"].(string)
	scope := "single occurrence"
	if all, _ := args["replace_all"].(bool); all {
		scope = "all occurrences"
	}
	return fmt.Sprintf("Edit file: %s\nReplace text (%s)", path, scope)
}

func DescribeFetchURLAction(args map[string]any) string {
	url, _ := args["url"].(string)
	return fmt.Sprintf("Fetch URL: %s\nContent will be converted to text for the model", url)
}

func DescribeWebSearchAction(args map[string]any) string {
	query, _ := args["query"].(string)
	return fmt.Sprintf("Web search: %s", query)
}
