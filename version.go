package pipeprep

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the released version of pipeprep.
var Version = strings.TrimSpace(version)
