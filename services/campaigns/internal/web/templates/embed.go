// Package templates provides the embedded HTML pages of the campaign site.
package templates

import "embed"

//go:embed *.html partials/*.html
var FS embed.FS
