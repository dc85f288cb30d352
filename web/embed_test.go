package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSContainsKioskPage(t *testing.T) {
	fsys, err := FS()
	require.NoError(t, err)

	for _, name := range []string{"index.html", "script.js", "style.css"} {
		body, err := fs.ReadFile(fsys, name)
		require.NoError(t, err, name)
		require.NotEmpty(t, body, name)
	}
}
