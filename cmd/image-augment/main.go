package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/image-augment/internal/config"
	"github.com/ironsheep/image-augment/internal/preprocessor"
	"github.com/ironsheep/image-augment/internal/runner"
	"github.com/ironsheep/image-augment/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "Path to a pipeline YAML file",
	Aliases: []string{"c"},
	EnvVars: []string{config.EnvPrefix + "CONFIG"},
}

var applyCommand = &cli.Command{
	Name:  "apply",
	Usage: "Augment images and their annotations",
	Description: `Apply runs the configured steps over every input image and writes the
augmented image, a <name>.json annotation file and optionally a preview into
the output directory. Directories given to --input are expanded to the images
they contain. Annotation files are matched to inputs by position, or found
next to each image as <name>.json.`,
	Flags: []cli.Flag{
		configFlag,
		&cli.StringSliceFlag{
			Name:     "input",
			Usage:    "Image file or directory (repeatable)",
			Aliases:  []string{"i"},
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "annotations",
			Usage:   "Annotation file for the input at the same position (repeatable)",
			Aliases: []string{"a"},
		},
		&cli.StringFlag{
			Name:    "output",
			Usage:   "Output directory",
			Aliases: []string{"o"},
			Value:   "augmented",
		},
		&cli.Uint64Flag{Name: "seed", Usage: "Seed for reproducible runs, overrides the config"},
		&cli.IntFlag{Name: "workers", Usage: "Concurrent inputs, overrides the config"},
		&cli.BoolFlag{Name: "replay", Usage: "Give every input the same augmentation"},
		&cli.BoolFlag{Name: "preview", Usage: "Write previews with the boxes drawn"},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		log, err := config.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		jobs, err := collectJobs(ctx.StringSlice("input"), ctx.StringSlice("annotations"))
		if err != nil {
			return err
		}
		log.Info("starting run",
			zap.Int("inputs", len(jobs)),
			zap.Int("steps", len(cfg.Steps)),
			zap.Bool("replay", cfg.Replay),
			zap.String("output", ctx.String("output")))

		results, err := runner.New(cfg, ctx.String("output"), log).Run(ctx.Context, jobs)
		if err != nil {
			return err
		}

		data := make([][]string, len(results))
		for i, r := range results {
			data[i] = []string{r.Job.Image, r.Output, strconv.Itoa(r.Instances)}
		}
		renderTable([]string{"INPUT", "OUTPUT", "INSTANCES"}, data)
		return nil
	},
}

// loadConfig reads --config and applies the command line overrides.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("seed") {
		cfg.Seed = ctx.Uint64("seed")
	}
	if ctx.IsSet("workers") {
		cfg.Workers = ctx.Int("workers")
	}
	if ctx.IsSet("replay") {
		cfg.Replay = ctx.Bool("replay")
	}
	if ctx.IsSet("preview") {
		cfg.Preview = ctx.Bool("preview")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var opsCommand = &cli.Command{
	Name:  "ops",
	Usage: "List the available operations",
	Action: func(ctx *cli.Context) error {
		ops := preprocessor.Operations()
		data := make([][]string, len(ops))
		for i, op := range ops {
			roles := make([]string, len(op.Roles))
			for j, r := range op.Roles {
				roles[j] = r.String()
			}
			replay := "no"
			if op.Replayable {
				replay = "yes"
			}
			data[i] = []string{string(op.Name), strings.Join(roles, ", "), replay}
		}
		renderTable([]string{"NAME", "FIELDS", "REPLAYABLE"}, data)
		return nil
	},
}

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Print the effective configuration",
	Flags: []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.Load(ctx.String("config"))
		if err != nil {
			return err
		}
		out, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = ctx.App.Writer.Write(out)
		return err
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the augmentation tools over MCP on stdin/stdout",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			EnvVars: []string{config.EnvPrefix + "LOG_LEVEL"},
			Value:   "info",
		},
	},
	Action: func(ctx *cli.Context) error {
		// stdout carries the protocol; the logger writes to stderr.
		log, err := config.NewLogger(ctx.String("log-level"))
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		log.Debug("starting server",
			zap.String("version", Version),
			zap.String("built", BuildTime),
			zap.String("commit", GitCommit))
		return server.New(log, Version).Run()
	},
}

func renderTable(header []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "image-augment",
		Usage:    "Replayable image and box augmentation for detection datasets",
		Version:  fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		Commands: []*cli.Command{applyCommand, opsCommand, configCommand, serveCommand},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
