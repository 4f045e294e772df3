// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w at level in format. An empty level is
// info and an empty format is text.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, types.ErrValidation)
		}
	}

	switch strings.ToLower(format) {
	case FormatText, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: %w", format, types.ErrValidation)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
