// Package pages holds the top-level dashboard pages.
package pages
