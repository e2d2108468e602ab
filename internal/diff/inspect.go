package diff

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileMeta is the file-level information git records above the hunks.
type FileMeta struct {
	OldName  string `json:"old_name,omitempty"`
	NewName  string `json:"new_name,omitempty"`
	IsNew    bool   `json:"is_new,omitempty"`
	IsDelete bool   `json:"is_delete,omitempty"`
	IsRename bool   `json:"is_rename,omitempty"`
	IsCopy   bool   `json:"is_copy,omitempty"`
	IsBinary bool   `json:"is_binary,omitempty"`
}

// Inspect reads file-level metadata from a single-file patch. It is best
// effort: patches gitdiff cannot parse, or that describe no file, yield nil.
func Inspect(patch string) *FileMeta {
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil || len(files) == 0 {
		return nil
	}
	f := files[0]
	return &FileMeta{
		OldName:  f.OldName,
		NewName:  f.NewName,
		IsNew:    f.IsNew,
		IsDelete: f.IsDelete,
		IsRename: f.IsRename,
		IsCopy:   f.IsCopy,
		IsBinary: f.IsBinary || hasBinaryMarker(patch),
	}
}

// hasBinaryMarker catches "Binary files a/x and b/x differ", which gitdiff
// does not flag on its own.
func hasBinaryMarker(patch string) bool {
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "Binary files ") && strings.HasSuffix(line, " differ") {
			return true
		}
	}
	return false
}
