// Package ident implements path normalization and the stable id
// derivations used for doc and chunk identity (spec.md 4.2). Every
// function here is pure: no filesystem access, no randomness, same
// bytes in always produce the same bytes out.
package ident

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"path"
	"strings"
	"unicode"
)

// NormalizePath converts p into the canonical forward-slash, lexically
// resolved form used as doc.path. It does not touch the filesystem: "."
// and ".." segments are resolved textually, matching path.Clean's
// semantics, and any trailing slash is stripped.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	// Collapse a lowercased drive letter prefix ("C:/" -> "c:/") the way
	// the teacher's path handling lowercases extensions and identifiers
	// elsewhere, without touching the rest of the path's case.
	if len(p) >= 2 && p[1] == ':' && isASCIILetter(p[0]) {
		p = strings.ToLower(p[:1]) + p[1:]
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	cleaned = strings.TrimSuffix(cleaned, "/")
	return cleaned
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// idDelimiter cannot appear in a normalized path (normalize_path always
// produces forward slashes) or in a hex content hash, so concatenating
// normalized_path + idDelimiter + content_hash is unambiguous.
const idDelimiter = "\x00"

// DocID derives doc.id from a normalized path and a content hash. Equal
// inputs always produce equal output (spec.md 4.2).
func DocID(normalizedPath, contentHash string) string {
	h := sha256.New()
	h.Write([]byte(normalizedPath))
	h.Write([]byte(idDelimiter))
	h.Write([]byte(contentHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkID derives chunk.id from a doc id and a byte/token offset.
func ChunkID(docID string, offset int64) string {
	h := sha256.New()
	h.Write([]byte(docID))
	var offBytes [8]byte
	binary.BigEndian.PutUint64(offBytes[:], uint64(offset))
	h.Write(offBytes[:])
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes raw document bytes into doc.hash.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CountTokens counts non-empty Unicode-whitespace-delimited tokens, the
// default token count an external producer may override (spec.md 4.2).
func CountTokens(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// NormalizeMetaKey lowercases a meta map key and collapses runs of
// non-alphanumeric characters to a single underscore (spec.md 3,
// doc.meta key normalization).
func NormalizeMetaKey(key string) string {
	var sb strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			sb.WriteByte('_')
			prevUnderscore = true
		}
	}
	return sb.String()
}
