package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore stores uploaded files and serves them from a public URL.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	PublicURL(key string) string
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// ObjectKey builds a unique key under folder, keeping a sanitized form of the original name.
func ObjectKey(folder, filename string) string {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" {
		base = "file"
	}
	safe := unsafeChars.ReplaceAllString(base, "_")
	return fmt.Sprintf("%s/%s-%s-%s", strings.Trim(folder, "/"), time.Now().UTC().Format("20060102"), uuid.NewString(), safe)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
