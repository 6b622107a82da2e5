package boilerplate

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// MustParseArgs requires that parser be able to parse os.Args without
// error, classifying go-flags errors the way a developer-facing CLI
// should: configuration mistakes panic, help and usage errors exit
// cleanly, and everything else is reported to stderr before exiting.
func MustParseArgs(parser *flags.Parser) {
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagErr, ok = err.(*flags.Error)
		if !ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		switch flagErr.Type {
		case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
			// These indicate a bug in the configuration struct itself.
			panic(err)

		case flags.ErrCommandRequired:
			os.Stderr.WriteString("\n")
			parser.WriteHelp(os.Stderr)
			os.Exit(1)

		case flags.ErrHelp:
			if parser.Options&flags.PrintErrors == 0 {
				parser.WriteHelp(os.Stderr)
			}
			os.Exit(1)

		default:
			os.Exit(1)
		}
	}
}

// LargeModeRatioEnvVar is the environment variable PlannerFacade reads to
// force a fraction of ad-hoc queries through the large-query path. It is
// documented here so cmd/ tools can surface it in --help output.
const LargeModeRatioEnvVar = "LARGE_MODE_RATIO"
