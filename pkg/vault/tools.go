package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/harun/oba/pkg/toolset"
)

// Tools exposes the vault to the agent as registered tools. A missing note
// comes back as a regular result string rather than an error so the model
// can recover by listing or searching.
func (v *Vault) Tools() []toolset.Definition {
	return []toolset.Definition{
		{
			Name: "read_note",
			Description: "Read a note from the vault. If the note exists its contents are" +
				" returned as a string; if not, the string `[note {name} does not exist]`" +
				" is returned. Use the bare note name as referenced in the vault, without" +
				" paths and without the .md extension.",
			Parameters: []toolset.Parameter{
				{
					Name: "note_name",
					Type: "string",
					Description: "The name of the note to read, e.g. `AGENTS` for /AGENTS.md" +
						" or `2025-09-11` for that daily note.",
					Required: true,
				},
			},
			Handler: v.readNoteTool,
		},
		{
			Name: "list_dir",
			Description: "List the contents of a directory in the vault, one entry per line." +
				" Directories end with a `/`, regular files do not. Use `.` for the vault root.",
			Parameters: []toolset.Parameter{
				{
					Name:        "sub_path",
					Type:        "string",
					Description: "The vault-relative directory to list, `.` for the root.",
					Required:    true,
				},
			},
			Handler: v.listDirTool,
		},
		{
			Name: "search_notes",
			Description: "Search the notes of the vault for a regex pattern. Matches are" +
				" returned as `path:line: text` lines. Errors come back as" +
				" `[system message: ...]`; too many matches is an error, so narrow the" +
				" pattern or folder when that happens.",
			Parameters: []toolset.Parameter{
				{
					Name:        "pattern",
					Type:        "string",
					Description: "The regex pattern to search for inside the notes.",
					Required:    true,
				},
				{
					Name:        "folder",
					Type:        "string",
					Description: "Folder to limit the search to; empty searches the whole vault.",
					Required:    false,
				},
				{
					Name:        "case_sensitive",
					Type:        "boolean",
					Description: "Whether the search is case sensitive.",
					Required:    false,
				},
			},
			Handler: v.searchTool,
		},
	}
}

func (v *Vault) readNoteTool(_ context.Context, args map[string]any) (toolset.Output, error) {
	name, _ := args["note_name"].(string)
	text, err := v.ReadNote(name)
	if errors.Is(err, os.ErrNotExist) {
		return toolset.Output{Text: fmt.Sprintf("[note %s does not exist]", name)}, nil
	}
	if err != nil {
		return toolset.Output{}, err
	}
	return toolset.Output{Text: text}, nil
}

func (v *Vault) listDirTool(_ context.Context, args map[string]any) (toolset.Output, error) {
	subPath, _ := args["sub_path"].(string)
	entries, err := v.ListDir(subPath)
	if err != nil {
		return toolset.Output{}, err
	}
	return toolset.Output{Text: strings.Join(entries, "\n")}, nil
}

func (v *Vault) searchTool(_ context.Context, args map[string]any) (toolset.Output, error) {
	pattern, _ := args["pattern"].(string)
	folder, _ := args["folder"].(string)
	caseSensitive, _ := args["case_sensitive"].(bool)

	result, err := v.Search(pattern, folder, caseSensitive)
	if err != nil {
		return toolset.Output{Text: fmt.Sprintf("[system message: %v]", err)}, nil
	}
	return toolset.Output{Text: result}, nil
}
