package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticSuffixes are the extensions served from the static directory.
var staticSuffixes = []string{".html", ".css", ".js", ".json", ".ico", ".png", ".svg"}

// staticPath maps a request path onto a file in the static directory.
// The index is served for the root and the legacy /client entry points.
func staticPath(urlPath string) (string, bool) {
	switch urlPath {
	case "", "/", "/client", "/client/", "/index.html", "/client/index.html":
		return "/index.html", true
	}
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(urlPath, suffix) {
			p := path.Clean(urlPath)
			if strings.HasPrefix(p, "/client/") {
				p = strings.TrimPrefix(p, "/client")
			}
			return p, true
		}
	}
	return "", false
}

func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.static.Open(name)
	if err != nil {
		writeText(w, http.StatusNotFound, "Not found: "+r.URL.Path)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeText(w, http.StatusNotFound, "Not found: "+r.URL.Path)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// safeFileSystem wraps a directory and refuses paths that escape it.
type safeFileSystem struct {
	root string
}

// Open implements http.FileSystem with path traversal protection.
func (fs safeFileSystem) Open(name string) (http.File, error) {
	cleanPath := filepath.Clean("/" + name)
	fullPath := filepath.Join(fs.root, cleanPath)

	absRoot, err := filepath.Abs(fs.root)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) && absPath != absRoot {
		return nil, os.ErrNotExist
	}
	return os.Open(fullPath)
}

// NewSafeFileSystem returns an http.FileSystem rooted at root.
func NewSafeFileSystem(root string) http.FileSystem {
	return safeFileSystem{root: root}
}
