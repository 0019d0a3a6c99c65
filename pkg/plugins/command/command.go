package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
)

// Placeholders substituted in command arguments.
const (
	PlaceholderInput  = "{input}"
	PlaceholderErrors = "{errors}"
	PlaceholderOutput = "{output}"
	PlaceholderExtra  = "{extra}"
	PlaceholderType   = "{type}"
)

// InfoEnv carries the validator metadata, JSON encoded, to renderer commands.
const InfoEnv = "DECLARATII_INFO"

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 5 * time.Minute

// waitDelay caps how long output pipes are drained after the process is
// killed; orphaned grandchildren may keep them open.
const waitDelay = time.Second

// Options configure the command family. Validator is required; Renderer is
// optional and left to the caller's fallback when empty.
type Options struct {
	Validator []string          `yaml:"validator"`
	Renderer  []string          `yaml:"renderer"`
	Timeout   string            `yaml:"timeout"`
	Dir       string            `yaml:"dir"`
	Env       map[string]string `yaml:"env"`
}

// Runner executes one command line.
type Runner struct {
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Run substitutes vars into the arguments and executes the command. The
// exit status is returned as a signed byte, so a process exiting with -4
// (reported by the OS as 252) yields -4. A non-nil error means the command
// could not be started, was killed by a signal or did not finish in time.
func (r Runner) Run(vars map[string]string, extraEnv ...string) (int, []byte, error) {
	if len(r.Args) == 0 {
		return 0, nil, errors.New("command: no command configured")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := expand(r.Args, vars)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = waitDelay
	if len(r.Env) > 0 || len(extraEnv) > 0 {
		cmd.Env = append(append(os.Environ(), r.Env...), extraEnv...)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, output.Bytes(), fmt.Errorf("command: %s timeout after %s", args[0], timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if !exitErr.Exited() {
			return 0, output.Bytes(), fmt.Errorf("command: %s did not exit normally: %s", args[0], exitErr.ProcessState)
		}
		return int(int8(exitErr.ExitCode())), output.Bytes(), nil
	}
	if err != nil {
		return 0, output.Bytes(), fmt.Errorf("command: run %s: %w", args[0], err)
	}
	return 0, output.Bytes(), nil
}

func expand(args []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, key, value)
	}
	replacer := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// Validator runs an external validator. The command's exit status is the
// return code; when the command exits non-zero without writing the error
// log itself, its combined output becomes the log.
type Validator struct {
	typeID plugin.TypeID
	runner Runner
	info   map[string]any
}

var _ plugin.Validator = (*Validator)(nil)

// Info implements plugin.Validator.
func (v *Validator) Info() any {
	return v.info
}

// ParseDocument implements plugin.Validator.
func (v *Validator) ParseDocument(inputPath, errorLogPath string) (int, error) {
	code, output, err := v.runner.Run(map[string]string{
		PlaceholderInput:  inputPath,
		PlaceholderErrors: errorLogPath,
		PlaceholderType:   string(v.typeID),
	})
	v.info = map[string]any{
		"type":   string(v.typeID),
		"input":  inputPath,
		"output": strings.TrimSpace(string(output)),
	}
	if err != nil {
		return 0, err
	}
	if code != 0 && errorLogPath != "" && len(output) > 0 {
		if _, statErr := os.Stat(errorLogPath); errors.Is(statErr, fs.ErrNotExist) {
			if err := os.WriteFile(errorLogPath, output, 0o644); err != nil {
				return code, fmt.Errorf("command: write error log: %w", err)
			}
		}
	}
	return code, nil
}

// Renderer runs an external renderer and expects it to create outputPath.
type Renderer struct {
	typeID plugin.TypeID
	runner Runner
}

var _ plugin.Renderer = (*Renderer)(nil)

// CreatePDF implements plugin.Renderer.
func (r *Renderer) CreatePDF(info any, outputPath, inputPath, extra string) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("command: encode info: %w", err)
	}
	code, output, err := r.runner.Run(map[string]string{
		PlaceholderInput:  inputPath,
		PlaceholderOutput: outputPath,
		PlaceholderExtra:  extra,
		PlaceholderType:   string(r.typeID),
	}, InfoEnv+"="+string(payload))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("command: renderer exited with %d: %s", code, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("command: renderer produced no output: %w", err)
	}
	return nil
}

// Build constructs the validator and, when configured, the renderer for
// entry. The returned renderer is nil without a renderer command.
func Build(entry plugin.Entry) (*Validator, *Renderer, error) {
	var opts Options
	if err := entry.DecodeOptions(&opts); err != nil {
		return nil, nil, err
	}
	if len(opts.Validator) == 0 {
		return nil, nil, errors.New("command: validator command is required")
	}
	timeout := DefaultTimeout
	if opts.Timeout != "" {
		parsed, err := time.ParseDuration(opts.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("command: timeout: %w", err)
		}
		timeout = parsed
	}
	env := make([]string, 0, len(opts.Env))
	for key, value := range opts.Env {
		env = append(env, key+"="+value)
	}

	id := entry.TypeID()
	base := Runner{Dir: opts.Dir, Env: env, Timeout: timeout}

	validatorRunner := base
	validatorRunner.Args = opts.Validator
	validator := &Validator{typeID: id, runner: validatorRunner}

	if len(opts.Renderer) == 0 {
		return validator, nil, nil
	}
	rendererRunner := base
	rendererRunner.Args = opts.Renderer
	return validator, &Renderer{typeID: id, runner: rendererRunner}, nil
}
