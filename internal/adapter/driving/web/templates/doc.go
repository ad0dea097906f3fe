// Package templates holds the page layout shared by the dashboard pages.
// The *_templ.go files are generated from the .templ sources.
package templates

//go:generate go tool templ generate -path .
