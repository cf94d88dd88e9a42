// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build metadata, overridden at release time via -ldflags -X.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
