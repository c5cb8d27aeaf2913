// Package web embeds the static site for serving from the Go binary.
//
// The web/site/ directory holds the public pages and assets; it is
// embedded at compile-time using go:embed.
//
// Usage in the API server:
//
//	import "github.com/estudiomv/webjuridico/web"
//	fs := web.SiteFS()  // returns io/fs.FS rooted at site/
package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed all:site
var site embed.FS

// SiteFS returns a filesystem rooted at the embedded site/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func SiteFS() fs.FS {
	sub, err := fs.Sub(site, "site")
	if err != nil {
		log.Fatalf("web.SiteFS: %v", err)
	}
	return sub
}
