package server

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"
)

// setNoCache disables client caching so edited course files show up on the
// next request.
func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// etag returns a strong entity tag for data.
func etag(data []byte) string {
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// contentHandler serves raw course files from fsys.
func contentHandler(fsys fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if name == "" || !fs.ValidPath(name) {
			http.NotFound(w, r)
			return
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("reading content failed", "path", name, "error", err)
			}
			http.NotFound(w, r)
			return
		}

		setNoCache(w.Header())
		w.Header().Set("ETag", etag(data))
		if path.Ext(name) == ".md" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		}
		// ServeContent answers If-None-Match from the ETag header.
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	}
}
