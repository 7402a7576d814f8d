// Package report renders the human-readable report.html for audit envelopes.
// Reports are composed as Markdown and converted to HTML with goldmark.
package report
