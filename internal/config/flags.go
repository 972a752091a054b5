package config

import (
	"flag"
	"io"
	"strings"
)

// Flags holds the command-line flags of meshconv.
type Flags struct {
	fs *flag.FlagSet

	config      *string
	input       *string
	output      *string
	meshlets    *bool
	mikkt       *bool
	interleaved *bool
	debug       *bool
	logFile     *string
	report      *string
	overdraw    *float64
	dumpConfig  *string

	set     map[string]bool
	dropped []string
	help    bool
}

// NewFlags defines the meshconv flags on a fresh FlagSet.
func NewFlags() *Flags {
	fs := flag.NewFlagSet("meshconv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	return &Flags{
		fs:          fs,
		config:      fs.String("config", "", "Path to config file"),
		input:       fs.String("input", "", "Source glTF or GLB file"),
		output:      fs.String("output", "", "Destination mesh file"),
		meshlets:    fs.Bool("meshlets", false, "Build meshlets"),
		mikkt:       fs.Bool("mikkt", false, "Generate tangents"),
		interleaved: fs.Bool("interleaved", false, "Write interleaved vertices"),
		debug:       fs.Bool("debug", false, "Enable debug logging"),
		logFile:     fs.String("log-file", "", "Also log to this file"),
		report:      fs.String("report", "", "Write a YAML build report to this path"),
		overdraw:    fs.Float64("overdraw-threshold", 0, "Overdraw optimizer threshold"),
		dumpConfig:  fs.String("dump-config", "", "Write the effective config to this path and exit"),
	}
}

// Parse parses args. Arguments that are not known flags are dropped, along
// with the bare value that follows an unknown flag.
func (f *Flags) Parse(args []string) error {
	if err := f.fs.Parse(f.filter(args)); err != nil {
		return err
	}
	f.set = map[string]bool{}
	f.fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return nil
}

func (f *Flags) filter(args []string) []string {
	var kept []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
			f.dropped = append(f.dropped, arg)
			continue
		}

		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "h" || name == "help" {
			f.help = true
			continue
		}
		fl := f.fs.Lookup(name)
		next := i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")

		if fl == nil {
			f.dropped = append(f.dropped, arg)
			if !hasValue && next {
				i++
				f.dropped = append(f.dropped, args[i])
			}
			continue
		}

		kept = append(kept, arg)
		if !hasValue && !isBoolFlag(fl) && i+1 < len(args) {
			i++
			kept = append(kept, args[i])
		}
	}
	return kept
}

func isBoolFlag(fl *flag.Flag) bool {
	b, ok := fl.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// Help reports whether -h or --help was given.
func (f *Flags) Help() bool {
	return f.help
}

// Dropped returns the arguments Parse ignored.
func (f *Flags) Dropped() []string {
	return f.dropped
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	return *f.config
}

// DumpConfigPath returns the --dump-config destination.
func (f *Flags) DumpConfigPath() string {
	return *f.dumpConfig
}

// Usage returns the flag summary.
func (f *Flags) Usage() string {
	var b strings.Builder
	b.WriteString("usage: meshconv --input <path> --output <path> [--meshlets] [--mikkt] [--interleaved]\n")
	f.fs.SetOutput(&b)
	f.fs.PrintDefaults()
	f.fs.SetOutput(io.Discard)
	return b.String()
}

// applyFlags applies flags given on the command line to the config.
func (f *Flags) applyFlags(cfg *Config) {
	if f.set["input"] {
		cfg.Convert.Input = *f.input
	}
	if f.set["output"] {
		cfg.Convert.Output = *f.output
	}
	if f.set["meshlets"] {
		cfg.Convert.Meshlets = *f.meshlets
	}
	if f.set["mikkt"] {
		cfg.Convert.Tangents = *f.mikkt
	}
	if f.set["interleaved"] {
		cfg.Convert.Interleaved = *f.interleaved
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if f.set["log-file"] {
		cfg.Logging.LogFile = *f.logFile
	}
	if f.set["report"] {
		cfg.Report.Path = *f.report
	}
	if f.set["overdraw-threshold"] {
		cfg.Optimize.OverdrawThreshold = float32(*f.overdraw)
	}
}
