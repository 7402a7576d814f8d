// Package visual compares page screenshots against stored baselines with
// ImageMagick compare and manages baseline creation and replacement.
package visual
