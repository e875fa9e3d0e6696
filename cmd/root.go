package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/josephlewis42/andpipe/core/config"
	"github.com/josephlewis42/andpipe/core/logger"
	"github.com/josephlewis42/andpipe/core/pipeline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// ErrUsage is returned when the command isn't given exactly four arguments.
var ErrUsage = errors.New("wrong number of arguments")

var errorPrefix = color.New(color.FgRed, color.Bold)

type rootOptions struct {
	cfgPath string
	verbose bool
}

// newRootCmd creates the command; the pipeline's exit code is stored in
// exitCode when a run completes.
func newRootCmd(configFs afero.Fs, exitCode *int) *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "andpipe [flags] prog1 prog2 prog3 file",
		Short: "Run prog1 && (prog2 | prog3) > file",
		Long: `Run prog1. If it succeeds, run prog2 piped into prog3 with the output of
prog3 written to file. Programs are looked up on PATH and run without
arguments.

The exit code is prog1's if it fails, otherwise the bitwise OR of the exit
codes of prog2 and prog3.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 4 {
				return ErrUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(configFs, opts.cfgPath)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}

			log, closeLog, err := logger.New(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				OutputPaths: cfg.Log.OutputPaths,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			defer log.Sync()

			orch := pipeline.New(log)
			orch.Stdin = cmd.InOrStdin()
			orch.Stdout = cmd.OutOrStdout()
			orch.Stderr = cmd.ErrOrStderr()
			orch.OutputMode = cfg.FileMode()

			res, err := orch.Run(pipeline.Pipeline{
				Gate:   args[0],
				Source: args[1],
				Sink:   args[2],
				Output: args[3],
			})
			if err != nil {
				return err
			}

			*exitCode = res.ExitCode()
			return nil
		},
	}

	flags := rootCmd.Flags()
	// Everything after the first program name is positional.
	flags.SetInterspersed(false)
	flags.StringVar(&opts.cfgPath, "config", "", "config directory or file, built-in defaults if unset")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every stage to the error stream")

	return rootCmd
}

func execute(configFs afero.Fs, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	exitCode := 0
	rootCmd := newRootCmd(configFs, &exitCode)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrUsage) {
			fmt.Fprintf(stderr, "usage: %s prog1 prog2 prog3 file\n", rootCmd.Name())
		} else {
			errorPrefix.Fprint(stderr, rootCmd.Name()+":")
			fmt.Fprintf(stderr, " %v\n", err)
		}
		return pipeline.ExitFailure
	}

	return exitCode
}

// Execute runs the root command against the process's arguments and standard
// streams and returns the code the process should exit with. This is called
// by main.main().
func Execute() int {
	return execute(afero.NewOsFs(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
