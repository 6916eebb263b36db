package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rickchristie/ctxwindow/schema"
	"github.com/tidwall/gjson"
)

// FileTools returns read-only file tools rooted at root. Their
// outputs are large enough to exercise tool-output compression in
// interactive sessions.
func FileTools(root string) []Tool {
	pathParams := schema.Object(map[string]*schema.Property{
		"path": schema.String("Path relative to the workspace root"),
	}, "path")

	return []Tool{
		{
			Name:        "list_dir",
			Description: "List the entries of a directory",
			Parameters:  pathParams,
			Run: func(ctx context.Context, args string) (string, error) {
				dir, err := resolve(root, args)
				if err != nil {
					return "", err
				}
				entries, err := os.ReadDir(dir)
				if err != nil {
					return "", err
				}
				var sb strings.Builder
				for _, e := range entries {
					sb.WriteString(e.Name())
					if e.IsDir() {
						sb.WriteString("/")
					}
					sb.WriteString("\n")
				}
				return sb.String(), nil
			},
		},
		{
			Name:        "read_file",
			Description: "Read a text file",
			Parameters:  pathParams,
			Run: func(ctx context.Context, args string) (string, error) {
				path, err := resolve(root, args)
				if err != nil {
					return "", err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
	}
}

// resolve reads the "path" argument and keeps it inside root.
func resolve(root, args string) (string, error) {
	if !gjson.Valid(args) {
		return "", fmt.Errorf("arguments are not valid JSON")
	}
	rel := gjson.Get(args, "path").String()
	full := filepath.Join(root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, filepath.Clean(root)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return full, nil
}
