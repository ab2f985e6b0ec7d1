package dexfile

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

// logger is quiet by default; embedders opt in via SetLogger.
var logger log.Interface = &log.Logger{Handler: discard.New(), Level: log.InfoLevel}

// SetLogger routes the package's (cold-path) diagnostics to l. Passing
// nil restores the discarding default. Accessor hot paths never log.
func SetLogger(l log.Interface) {
	if l == nil {
		logger = &log.Logger{Handler: discard.New(), Level: log.InfoLevel}
		return
	}
	logger = l
}
