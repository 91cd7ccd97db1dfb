package hub

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/kbukum/modelkit/errors"
)

// Ref identifies one revision of a model repository at a source.
type Ref struct {
	// Key is the key as given by the caller.
	Key string
	// Scheme selects the source.
	Scheme string
	// Path is the key without its scheme, e.g. "org/model" or
	// "bucket/prefix/model".
	Path     string
	Revision string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%s", r.Key, r.Revision)
}

// ParseRef splits key into scheme and path. Keys without "://" use
// defaultScheme.
func ParseRef(key, revision, defaultScheme string) (Ref, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Ref{}, errors.InvalidInput("model", "model key is empty")
	}

	scheme, p := defaultScheme, key
	if i := strings.Index(key, "://"); i >= 0 {
		scheme, p = strings.ToLower(key[:i]), key[i+3:]
	}
	p = strings.Trim(p, "/")
	if scheme == "" || p == "" {
		return Ref{}, errors.InvalidInput("model", fmt.Sprintf("malformed model key %q", key))
	}
	if clean := path.Clean(p); clean != p || !filepath.IsLocal(filepath.FromSlash(p)) {
		return Ref{}, errors.InvalidInput("model", fmt.Sprintf("model key %q is not a clean relative path", key))
	}
	if revision == "" || strings.ContainsAny(revision, `/\`) || revision == ".." || revision == "." {
		return Ref{}, errors.InvalidInput("revision", fmt.Sprintf("invalid revision %q", revision))
	}
	return Ref{Key: key, Scheme: scheme, Path: p, Revision: revision}, nil
}

// Bucket splits an object store path into its bucket and key prefix.
func (r Ref) Bucket() (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(r.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix
}
