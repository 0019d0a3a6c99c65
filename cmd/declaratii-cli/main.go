// Command declaratii-cli validates one declaration file locally and copies
// the rendered artifact next to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jemish-virani/declaratii-anaf/internal/app"
	"github.com/jemish-virani/declaratii-anaf/internal/config"
	"github.com/jemish-virani/declaratii-anaf/internal/prompt"
	"github.com/jemish-virani/declaratii-anaf/pkg/pipeline"
	"github.com/jemish-virani/declaratii-anaf/pkg/service"
)

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitUsage    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var driver prompt.Driver
	if prompt.Interactive() {
		driver = prompt.Survey()
	}
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, driver))
}

type cliOptions struct {
	configPath string
	typeID     string
	out        string
	force      bool
	verbose    bool
	input      string
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("declaratii-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "configuration file (default "+config.DefaultFile+" when present)")
	fs.StringVar(&opts.typeID, "type", "", "declaration type, e.g. d112 (asked for when omitted on a terminal)")
	fs.StringVar(&opts.out, "out", "", "where to copy the rendered artifact")
	fs.BoolVar(&opts.force, "force", false, "overwrite -out without asking")
	fs.BoolVar(&opts.verbose, "v", false, "log pipeline activity to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: declaratii-cli [flags] <file.xml|file.zip>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one input file is required")
	}
	opts.input = fs.Arg(0)
	return opts, nil
}

// run returns the process exit code. driver is nil when no terminal is
// attached.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, driver prompt.Driver) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitUsage
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "declaratii: ", log.LstdFlags)
	}
	svc, err := app.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitUsage
	}
	defer svc.Close()

	typeID, err := chooseType(ctx, svc, opts.typeID, driver)
	if err != nil {
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitUsage
	}

	f, err := os.Open(opts.input)
	if err != nil {
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitUsage
	}
	defer f.Close()

	res := svc.SubmitUpload(ctx, typeID, filepath.Base(opts.input), f)
	fmt.Fprintf(stdout, "%s\n(cod %d)\n", strings.TrimRight(res.Message, "\n"), res.ReturnCode)
	if !res.HasArtifact() {
		return exitRejected
	}

	if opts.out == "" {
		return exitOK
	}
	if err := copyArtifact(ctx, res, opts.out, opts.force, driver); err != nil {
		fmt.Fprintf(stderr, "declaratii-cli: %v\n", err)
		return exitRejected
	}
	fmt.Fprintf(stdout, "Fisier generat: %s\n", opts.out)
	return exitOK
}

func chooseType(ctx context.Context, svc *service.Service, typeID string, driver prompt.Driver) (string, error) {
	if strings.TrimSpace(typeID) != "" {
		return typeID, nil
	}
	types := svc.Types()
	if len(types) == 0 {
		return "", errors.New("no declaration types are configured")
	}
	if len(types) == 1 {
		return string(types[0]), nil
	}
	if driver == nil {
		return "", errors.New("-type is required when not running on a terminal")
	}
	options := make([]string, len(types))
	for i, id := range types {
		options[i] = string(id)
	}
	return driver.Select(ctx, prompt.SelectConfig{
		Message: "Tip declaratie:",
		Options: options,
		Default: options[0],
	})
}

func copyArtifact(ctx context.Context, res pipeline.Result, out string, force bool, driver prompt.Driver) error {
	if _, err := os.Stat(out); err == nil && !force {
		if driver == nil {
			return fmt.Errorf("%s exists; use -force to overwrite", out)
		}
		ok, err := driver.Confirm(ctx, prompt.ConfirmConfig{Message: fmt.Sprintf("Suprascrie %s?", out)})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s left unchanged", out)
		}
	}

	src, err := os.Open(res.Artifact.OutputFile)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	return dst.Close()
}
