package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatAuto    Format = "auto"
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New. The zero value logs at info level and picks the
// format from the ENV variable and the terminal.
type Options struct {
	Level  string
	Format Format
	Out    io.Writer
}

func colorize(s any, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a logger. With FormatAuto, ENV=production forces JSON output;
// otherwise console output is used when stderr is a terminal.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var l zerolog.Logger
	if useConsole(opts.Format, out) {
		l = NewDevelopment(out)
	} else {
		l = NewProduction(out)
	}
	return l.Level(ParseLevel(opts.Level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func useConsole(format Format, out io.Writer) bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}

	switch os.Getenv("ENV") {
	case "production", "prod":
		return false
	case "development", "dev":
		return true
	}

	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewDevelopment creates a console logger with colored levels.
func NewDevelopment(out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         out,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func formatLevel(i any) string {
	ll, ok := i.(string)
	if !ok {
		return strings.ToUpper(fmt.Sprintf("%s", i))
	}
	switch ll {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorYellow)
	case "info":
		return colorize("INF", colorGreen)
	case "warn", "error", "fatal", "panic":
		return colorize(strings.ToUpper(ll[:3]), colorRed)
	default:
		if len(ll) > 3 {
			ll = ll[:3]
		}
		return colorize(strings.ToUpper(ll), colorBold)
	}
}

// NewProduction creates a JSON logger with UNIX timestamps.
func NewProduction(out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(out).With().Timestamp().Logger()
}

// MaskToken shortens a secret for logging, keeping both ends.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + "…" + token[len(token)-6:]
}
