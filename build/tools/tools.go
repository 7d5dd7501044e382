//go:build tools
// +build tools

package tools

import (
	// Tool imports for the mobile build (gomobile bind ./mobile).
	_ "golang.org/x/mobile/cmd/gobind"
	_ "golang.org/x/mobile/cmd/gomobile"
)
