package templates

import "embed"

//go:embed layouts partials pages
var FS embed.FS
