package rql

import "strings"

// docColumns and chunkColumns are the field catalog (spec.md 4.5): every
// filterable/selectable/orderable field other than doc.meta.<key>, which
// is always valid regardless of key.
var docColumns = map[string]bool{
	"id": true, "path": true, "hash": true, "mtime": true, "tag": true, "source": true,
}

var chunkColumns = map[string]bool{
	"id": true, "doc_id": true, "offset": true, "tokens": true, "text": true,
}

// IsKnownField reports whether a fully qualified field name (doc.<col>,
// chunk.<col>, or doc.meta.<key>) belongs to the field catalog.
func IsKnownField(field string) bool {
	parts := strings.SplitN(field, ".", 3)
	if len(parts) < 2 {
		return false
	}
	switch parts[0] {
	case "doc":
		if len(parts) == 3 && parts[1] == "meta" {
			return parts[2] != ""
		}
		return len(parts) == 2 && docColumns[parts[1]]
	case "chunk":
		return len(parts) == 2 && chunkColumns[parts[1]]
	default:
		return false
	}
}

// IsMetaField reports whether field addresses doc.meta.<key>, and if so
// returns the key.
func IsMetaField(field string) (key string, ok bool) {
	parts := strings.SplitN(field, ".", 3)
	if len(parts) == 3 && parts[0] == "doc" && parts[1] == "meta" {
		return parts[2], true
	}
	return "", false
}
