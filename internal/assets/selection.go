package assets

import "strconv"

// SessionKey is the session entry holding the remembered current folder.
const SessionKey = "assets.currentPage"

// Source names where a Selection came from, in precedence order.
type Source int

const (
	SourceQuery Source = iota
	SourcePath
	SourceSession
	SourceRoot
)

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourcePath:
		return "path"
	case SourceSession:
		return "session"
	default:
		return "root"
	}
}

// Selection is the folder a request operates on. FolderID 0 is the root.
type Selection struct {
	FolderID uint
	Source   Source
}

// Remember reports whether the selection is written back to the session.
func (s Selection) Remember() bool {
	return s.FolderID != 0
}

// Explicit reports whether the request named the folder itself. An explicit
// root selection clears the remembered folder.
func (s Selection) Explicit() bool {
	return s.Source == SourceQuery || s.Source == SourcePath
}

// ResolveSelection picks the current folder from the explicit ID query
// variable, then the ID path parameter, then the remembered session value,
// then the root. Values that are not non-negative integers are skipped.
func ResolveSelection(queryID, pathID string, remembered int) Selection {
	if id, ok := parseID(queryID); ok {
		return Selection{FolderID: id, Source: SourceQuery}
	}
	if id, ok := parseID(pathID); ok {
		return Selection{FolderID: id, Source: SourcePath}
	}
	if remembered > 0 {
		return Selection{FolderID: uint(remembered), Source: SourceSession}
	}
	return Selection{Source: SourceRoot}
}

func parseID(s string) (uint, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
