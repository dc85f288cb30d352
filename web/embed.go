package web

import (
	"embed"
	"io/fs"
)

// staticFS embeds the kiosk page (web/dist) so the binary can install the asset cache
// without network access.
//
//go:embed all:dist
var staticFS embed.FS

// FS returns the embedded kiosk page files rooted at the dist directory.
func FS() (fs.FS, error) {
	return fs.Sub(staticFS, "dist")
}
