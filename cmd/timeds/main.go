// Command timeds runs the configured replication schemes: one pass
// per scheme per invocation, then exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jalalmostafa/timeds/internal/config"
	"github.com/jalalmostafa/timeds/internal/lockfile"
	"github.com/jalalmostafa/timeds/internal/rlog"
	"github.com/jalalmostafa/timeds/internal/worker"
)

// Exit codes: 0 normal completion, 1 configuration error, 2
// unrecoverable startup error (e.g. PID lock already held).
const (
	exitOK   = 0
	exitConf = 1
	exitFail = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath          string
		verbose             bool
		onlyDynamicAndViews bool
		pidfilePath         string
		logFilePath         string
		logMaxSizeMB        int
	)

	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "timeds",
		Short: "Incremental relational database replicator",
		Long: `timeds copies tables between relational databases: a one-time
structural pass creates missing target tables and views, a periodic
dynamic pass refreshes small lookup tables wholesale, and a watermark
driven incremental pass appends new rows to ordered tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), runOptions{
				configPath:          v.GetString("config"),
				verbose:             verbose,
				onlyDynamicAndViews: onlyDynamicAndViews,
				pidfilePath:         v.GetString("pidfile"),
				logFilePath:         v.GetString("log-file"),
				logMaxSizeMB:        logMaxSizeMB,
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "conf.json", "path to the scheme configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print the validated configuration and exit")
	rootCmd.PersistentFlags().BoolVarP(&onlyDynamicAndViews, "only-dynamic-and-views", "d", false, "skip the incremental pass; refresh only dynamic tables and views")
	rootCmd.PersistentFlags().StringVar(&pidfilePath, "pidfile", "timeds.pid", "path to the PID lock file")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "rotate logs through this file instead of stderr")
	rootCmd.PersistentFlags().IntVar(&logMaxSizeMB, "log-max-size-mb", 100, "log file size in megabytes before rotation")

	// TIMEDS_CONFIG / TIMEDS_PIDFILE override the flag defaults; an
	// explicit flag still wins over the environment.
	v.SetEnvPrefix("TIMEDS")
	v.AutomaticEnv()
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("pidfile", rootCmd.PersistentFlags().Lookup("pidfile"))
	_ = v.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			return exitConf
		}
		return exitFail
	}
	return exitOK
}

// runOptions collects the flags runDaemon needs, gathered after
// cobra/viper have resolved flag vs. environment precedence.
type runOptions struct {
	configPath          string
	verbose             bool
	onlyDynamicAndViews bool
	pidfilePath         string
	logFilePath         string
	logMaxSizeMB        int
}

func runDaemon(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.verbose {
		return dumpConfig(cfg)
	}

	lock, err := lockfile.Acquire(opts.pidfilePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	var log *rlog.Logger
	if opts.logFilePath != "" {
		log = rlog.NewFileLogger(opts.logFilePath, opts.logMaxSizeMB)
	} else {
		log = rlog.New()
	}

	var failures []error
	for name, scheme := range cfg {
		if err := ctx.Err(); err != nil {
			return err
		}
		errs := worker.RunScheme(ctx, name, scheme, opts.onlyDynamicAndViews, log)
		for _, e := range errs {
			log.Exception(fmt.Sprintf("scheme %s failed", name), e)
			failures = append(failures, e)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d worker error(s), see log for detail", len(failures))
	}
	return nil
}

func dumpConfig(cfg config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
