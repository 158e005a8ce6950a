package document

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

var allowedMIME = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
}

// AllowedMIME reports whether mime (parameters stripped) is accepted.
func AllowedMIME(mime string) bool {
	_, ok := allowedMIME[normalizeMIME(mime)]
	return ok
}

func normalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// NormalizeMIME is the stored form of a content type.
func NormalizeMIME(mime string) string { return normalizeMIME(mime) }

const maxNameLen = 100

// SanitizeFilename keeps letters, digits, dot, dash and underscore, folds
// everything else to '_' and caps the length while preserving the
// extension.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "file"
	}
	if len(out) > maxNameLen {
		ext := path.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:maxNameLen-len(ext)] + ext
	}
	return out
}

// StorageKey is deterministic on its inputs and human-traceable:
// policies/{number}/{kind}/{actorId}/{category}/{unixMillis}-{uniq}-{name}.
// uniq keeps two uploads of the same file in the same millisecond apart;
// callers pass the document id.
func StorageKey(policyNumber, actorKind, actorID string, c Category, at time.Time, uniq, filename string) string {
	return fmt.Sprintf("policies/%s/%s/%s/%s/%d-%s-%s",
		policyNumber, actorKind, actorID, c, at.UnixMilli(), uniq, SanitizeFilename(filename))
}

// ContractKey places contract files beside the policy's actor evidence.
func ContractKey(policyNumber string, version int, at time.Time, uniq, filename string) string {
	return fmt.Sprintf("policies/%s/contracts/v%d/%d-%s-%s", policyNumber, version, at.UnixMilli(), uniq, SanitizeFilename(filename))
}
