// Package cli implements the chesscomm command: read move facts from flags,
// generate commentary, print it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chesscomm/internal/commentary"
	"chesscomm/internal/config"
	"chesscomm/internal/device"
	"chesscomm/internal/llm"
	"chesscomm/pkg/types"
)

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// ErrUsage reports invalid or missing command line input.
func ErrUsage(msg string) error { return usageError{msg: msg} }

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

// Deps are the collaborators Execute needs. Zero fields get host defaults.
type Deps struct {
	NewRuntime func(llm.Options) (llm.Runtime, error)
	Probe      device.Probe
	LookupEnv  func(string) (string, bool)
	Stdout     io.Writer
	Stderr     io.Writer
}

func (d Deps) withDefaults() Deps {
	if d.NewRuntime == nil {
		d.NewRuntime = llm.NewRuntime
	}
	if d.Probe == nil {
		d.Probe = device.NewSystemProbe()
	}
	if d.LookupEnv == nil {
		d.LookupEnv = os.LookupEnv
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	return d
}

// factFlags maps each required flag to its MoveFacts field.
func factFlags(f *types.MoveFacts) []struct {
	name, usage string
	dst         *string
} {
	return []struct {
		name, usage string
		dst         *string
	}{
		{"fen", "position before the move, in FEN", &f.FEN},
		{"move", "move played, in SAN", &f.Move},
		{"side", "side that played the move (White|Black)", &f.Side},
		{"tag", "move quality tag, e.g. Best, Mistake", &f.Tag},
		{"best_alt", "engine's best alternative, in SAN", &f.BestAlt},
		{"cp", "centipawn change, e.g. \"27->21 (Δ=6)\"", &f.CP},
	}
}

type options struct {
	configPath string
	logLevel   string
	modelID    string
	backend    string
	serverURL  string
}

// NewRootCmd builds the chesscomm command wired to d.
func NewRootCmd(d Deps) *cobra.Command {
	d = d.withDefaults()
	var (
		facts types.MoveFacts
		opts  options
		cfg   config.Config
		log   zerolog.Logger
	)

	root := &cobra.Command{
		Use:           "chesscomm",
		Short:         "Generate natural language commentary for a chess move",
		Example:       `  chesscomm --fen "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e4 0 1" --move c5 --side Black --tag Best --best_alt e5 --cp "27->21 (Δ=6)"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)

	for _, f := range factFlags(&facts) {
		root.Flags().StringVar(f.dst, f.name, "", f.usage)
		_ = root.MarkFlagRequired(f.name)
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error|off")
	root.Flags().StringVar(&opts.modelID, "model", "", "model id (default "+config.DefaultModelID+")")
	root.Flags().StringVar(&opts.backend, "backend", "", "llm backend: server|spawn")
	root.Flags().StringVar(&opts.serverURL, "server-url", "", "llama-server base URL for the server backend")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(opts, d.LookupEnv)
		if err != nil {
			return err
		}
		log, err = newConsoleLogger(d.Stderr, cfg.LogLevel)
		return err
	}

	root.RunE = func(cmd *cobra.Command, args []string) error {
		for _, f := range factFlags(&facts) {
			if strings.TrimSpace(*f.dst) == "" {
				return ErrUsage(fmt.Sprintf("flag --%s must not be empty", f.name))
			}
		}

		o := cfg.RuntimeOptions()
		o.Logger = log
		rt, err := d.NewRuntime(o)
		if err != nil {
			return err
		}
		defer rt.Close()

		gen := commentary.New(commentary.Options{
			Runtime: rt,
			Probe:   d.Probe,
			ModelID: cfg.ModelID,
			Logger:  log,
		})
		res, err := gen.Generate(cmd.Context(), facts)
		if err != nil {
			return err
		}
		log.Debug().Str("run_id", res.RunID).Str("device", string(res.Plan.Device)).Bool("retried_on_cpu", res.RetriedOnCPU).Int("completion_tokens", res.CompletionTokens).Msg("generation finished")
		_, err = fmt.Fprintln(d.Stdout, res.Text)
		return err
	}
	return root
}

// loadConfig layers defaults, the config file, CHESSCOMM_* variables and flags.
func loadConfig(o options, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, ErrUsage(fmt.Sprintf("config: %v", err))
		}
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		return cfg, ErrUsage(err.Error())
	}
	for dst, v := range map[*string]string{
		&cfg.LogLevel:  o.logLevel,
		&cfg.ModelID:   o.modelID,
		&cfg.Backend:   o.backend,
		&cfg.ServerURL: o.serverURL,
	} {
		if v != "" {
			*dst = v
		}
	}
	return cfg, nil
}

// newConsoleLogger writes plain level-prefixed lines without timestamps.
func newConsoleLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "":
	case "off":
		lvl = zerolog.Disabled
	default:
		parsed, err := zerolog.ParseLevel(l)
		if err != nil {
			return zerolog.Nop(), ErrUsage(fmt.Sprintf("invalid log level %q", level))
		}
		lvl = parsed
	}
	cw := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(cw).Level(lvl), nil
}

// Execute runs the command with args and returns the process exit code.
// Failures are printed as "Error: <message>" on stderr.
func Execute(ctx context.Context, args []string, d Deps) int {
	d = d.withDefaults()
	cmd := NewRootCmd(d)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(d.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
