package cli

import (
	"flag"
	"io"
)

type cliOptions struct {
	configPath   string
	cppm         string
	outputDir    string
	once         bool
	force        bool
	workers      int
	ui           bool
	history      bool
	historyLimit int
	verbose      bool
	version      bool
	args         []string
}

func parseOptions(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("cppmsplit", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default ./"+defaultConfigName+" when present)")
	fs.StringVar(&opts.cppm, "cppm", "", "Translate a single module unit and print the path of the generated source file")
	fs.StringVar(&opts.outputDir, "output-dir", "", "Directory for generated files (default: next to each unit)")
	fs.BoolVar(&opts.once, "once", false, "Translate all units once and exit")
	fs.BoolVar(&opts.force, "force", false, "Translate units even when their cached outputs are current")
	fs.IntVar(&opts.workers, "workers", 0, "Number of units translated concurrently (default from config)")
	fs.BoolVar(&opts.ui, "ui", false, "Enable terminal UI in watch mode")
	fs.BoolVar(&opts.history, "history", false, "Print recent translations from the history database and exit")
	fs.IntVar(&opts.historyLimit, "history-limit", 50, "Maximum number of rows printed by -history")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.verbose, "debug", false, "Alias for -verbose")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
