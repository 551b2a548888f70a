//go:build tools

// Package proctor pins the code generators used by go:generate so that
// mockgen runs at the version recorded in go.mod.
package proctor

import (
	_ "go.uber.org/mock/mockgen"
)
