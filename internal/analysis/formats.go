package analysis

import (
	"path/filepath"
	"strings"
)

// Extensions maps the lowercase file extensions Decode can read.
var Extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// IsImage reports whether path has an extension Decode supports.
func IsImage(path string) bool {
	return Extensions[strings.ToLower(filepath.Ext(path))]
}
