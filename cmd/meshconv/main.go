// meshconv compiles glTF scenes into GPU-ready mesh files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/internal/config"
	"github.com/Faultbox/meshconv/internal/convert"
	"github.com/Faultbox/meshconv/internal/logger"
	"github.com/Faultbox/meshconv/internal/report"
	"github.com/Faultbox/meshconv/pkg/formats"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := config.NewFlags()
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if flags.Help() {
		fmt.Fprint(stdout, flags.Usage())
		return nil
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	if path := flags.DumpConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(stdout, "Config written to %s\n", path)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logOpts := logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: os.Stderr,
	}
	if cfg.Logging.LogFile != "" {
		logOpts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.InitWithOptions(logOpts); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	if dropped := flags.Dropped(); len(dropped) > 0 {
		logger.Debug("ignored arguments", zap.Strings("args", dropped))
	}

	start := time.Now()
	conv := convert.New(convert.Options{
		Interleaved:       cfg.Convert.Interleaved,
		Meshlets:          cfg.Convert.Meshlets,
		Tangents:          cfg.Convert.Tangents,
		OverdrawThreshold: cfg.Optimize.OverdrawThreshold,
	})

	res, err := conv.ConvertFile(cfg.Convert.Input)
	if err != nil {
		var convErr *convert.ConversionError
		if errors.As(err, &convErr) {
			logger.Error("conversion failed",
				zap.Int("mesh", convErr.Mesh),
				zap.Int("primitive", convErr.Primitive),
				zap.String("stage", string(convErr.Stage)),
				zap.Error(convErr.Err))
		}
		return err
	}

	out := cfg.Convert.Output
	if err := formats.WriteMeshFile(out, res.File); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := formats.VerifyMeshFile(out, res.File); err != nil {
		if rmErr := os.Remove(out); rmErr != nil {
			logger.Warn("removing unverified output", zap.String("path", out), zap.Error(rmErr))
		}
		return fmt.Errorf("verifying output: %w", err)
	}
	elapsed := time.Since(start)
	logger.Info("mesh file written",
		zap.String("path", out),
		zap.Int("meshes", len(res.File.Meshes)),
		zap.Duration("elapsed", elapsed))

	if cfg.Report.Path != "" {
		r, err := report.New(cfg.Convert.Input, out, res, elapsed)
		if err != nil {
			return fmt.Errorf("building report: %w", err)
		}
		if err := r.SaveTo(cfg.Report.Path); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("report written", zap.String("path", cfg.Report.Path), zap.String("build_id", string(r.BuildID)))
	}

	fmt.Fprintf(stdout, "%s: %d meshes (%s)\n", out, len(res.File.Meshes), res.File.Flags)
	return nil
}
