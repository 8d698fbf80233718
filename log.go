package infraplug

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// SetupLogging sends logs to w (stderr for plugins, stdout carries the
// payload) at info level, or debug when verbose.
func SetupLogging(w io.Writer, verbose bool) {
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
