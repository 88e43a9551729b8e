package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/ironsheep/graticule-tools/internal/config"
	"github.com/ironsheep/graticule-tools/internal/logging"
	"github.com/ironsheep/graticule-tools/internal/pipeline"
	"github.com/ironsheep/graticule-tools/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("graticule %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		}
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "graticule: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "graticule - calibrate microscope images against a graticule and add a scale bar")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  graticule [run] [flags]   Run the calibration pipeline")
	fmt.Fprintln(w, "  graticule serve [flags]   Serve the calibration tools over MCP (stdin/stdout)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	newFlags("run", w).fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=path       Configuration file (TOML)\n", config.EnvConfigPath)
	fmt.Fprintf(w, "  %s=debug   Log level (debug, info, warn, error)\n", config.EnvLogLevel)
}

// cliFlags are the command-line overrides. Only flags that were set on the
// command line replace configuration values.
type cliFlags struct {
	fs *flag.FlagSet

	configPath string
	picker     string
	graticule  string
	target     string
	out        string
	figures    string
	row        int
	x1, x2     float64
	listen     string
	logLevel   string
}

func newFlags(name string, output io.Writer) *cliFlags {
	f := &cliFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.SetOutput(output)
	f.fs.StringVar(&f.configPath, "config", "", "configuration file (TOML); defaults to $"+config.EnvConfigPath)
	f.fs.StringVar(&f.picker, "picker", "", "reference point picker: manual, prompt, auto or web")
	f.fs.StringVar(&f.graticule, "graticule", "", "graticule calibration image")
	f.fs.StringVar(&f.target, "target", "", "image to annotate with the scale bar")
	f.fs.StringVar(&f.out, "out", "", "annotated output image (.png, .jpg or .bmp)")
	f.fs.StringVar(&f.figures, "figures", "", "directory for intermediate figures")
	f.fs.IntVar(&f.row, "row", 0, "graticule row to take the intensity profile from")
	f.fs.Float64Var(&f.x1, "x1", 0, "first manual reference position in pixels")
	f.fs.Float64Var(&f.x2, "x2", 0, "second manual reference position in pixels")
	f.fs.StringVar(&f.listen, "listen", "", "address of the web picker page")
	f.fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	return f
}

// config loads the configuration file and applies every flag that was set.
func (f *cliFlags) config() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "picker":
			cfg.Calibration.Picker = f.picker
		case "graticule":
			cfg.Inputs.Graticule = f.graticule
		case "target":
			cfg.Inputs.Target = f.target
		case "out":
			cfg.Output.Path = f.out
		case "figures":
			cfg.Output.FigureDir = f.figures
		case "row":
			cfg.Calibration.ProfileRow = f.row
		case "x1":
			cfg.Calibration.X1 = f.x1
		case "x2":
			cfg.Calibration.X2 = f.x2
		case "listen":
			cfg.Web.Listen = f.listen
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})
	return cfg, nil
}

func run(args []string) error {
	cmd := "run"
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		cmd, args = args[0], args[1:]
	}

	f := newFlags(cmd, os.Stderr)
	if err := f.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if f.fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", f.fs.Arg(0))
	}

	cfg, err := f.config()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, isatty.IsTerminal(os.Stderr.Fd()))

	if cmd == "serve" {
		log.Debug().Str("version", Version).Str("built", BuildTime).Str("commit", GitCommit).Msg("starting MCP server")
		return server.New(log, Version).Run()
	}
	return calibrate(cfg, log)
}

func calibrate(cfg *config.Config, log zerolog.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.Options{
		Log: log,
		OnReady: func(url string) {
			fmt.Fprintf(os.Stderr, "Open %s and click the two reference lines.\n", url)
		},
	})
	if err != nil {
		return err
	}

	if nm, err := res.Calibration.PerPixel(cfg.Calibration.ReportUnit); err == nil {
		fmt.Printf("Scale: %.4f %s/pixel (%.4f %s/pixel)\n",
			nm, cfg.Calibration.ReportUnit, res.Calibration.UnitsPerPixel, res.Calibration.Unit)
	}
	fmt.Printf("Wrote %s\n", res.OutputPath)
	for _, fig := range res.Figures {
		fmt.Printf("Wrote %s\n", fig)
	}
	return nil
}
