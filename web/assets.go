package web

import (
	"embed"
	"io/fs"
)

// Embed templates
//
//go:embed templates/*
var TemplateAssets embed.FS

// GetTemplateFS returns the embedded template filesystem
func GetTemplateFS() fs.FS {
	templates, err := fs.Sub(TemplateAssets, "templates")
	if err != nil {
		panic(err)
	}
	return templates
}
