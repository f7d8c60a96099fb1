// Package log provides logging helpers that keep lock resource names out of
// production logs.
package log

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SanitizationMode controls how resource names are rendered in logs
type SanitizationMode int

const (
	// ProductionMode hashes resource names
	ProductionMode SanitizationMode = iota
	// DevelopmentMode shows truncated resource names
	DevelopmentMode
	// DebugMode shows full resource names
	DebugMode
)

// ParseMode maps a config value to a SanitizationMode. Unknown values fall
// back to ProductionMode.
func ParseMode(mode string) SanitizationMode {
	switch strings.ToLower(mode) {
	case "development":
		return DevelopmentMode
	case "debug":
		return DebugMode
	default:
		return ProductionMode
	}
}

// SanitizeResource renders a lock resource name for logging
func SanitizeResource(mode SanitizationMode, resource string) string {
	if resource == "" {
		return ""
	}

	switch mode {
	case DevelopmentMode:
		if len(resource) <= 20 {
			return resource
		}
		return resource[:10] + "..." + resource[len(resource)-7:]
	case DebugMode:
		return resource
	default:
		// Resource names may embed user data
		hash := sha256.Sum256([]byte(resource))
		return fmt.Sprintf("hash:%x", hash[:8])
	}
}

// Resource returns a zap field with the sanitized resource name
func Resource(mode SanitizationMode, resource string) zap.Field {
	return zap.String("resource", SanitizeResource(mode, resource))
}
