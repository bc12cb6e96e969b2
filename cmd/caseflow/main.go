package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garyjia/caseflow/internal/config"
	"github.com/garyjia/caseflow/internal/container"
	"github.com/garyjia/caseflow/pkg/utils"
)

const defaultConfigFile = "configs/config.yaml"

// cli holds what every subcommand shares: flag values and where output goes
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func main() {
	ctx, stop := signalContext()
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	app := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:   "caseflow",
		Short: "Case assignment and completion workflow",
		Long: `caseflow tracks cases from intake to completion.
Cases move OPEN -> PENDING -> IN_PROGRESS -> PENDING_COMPLETION -> COMPLETED.
Managers assign and review, caseworkers accept, reject and finish work,
and no caseworker holds more than the configured number of active cases.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default "+defaultConfigFile+" when present)")
	flags.String("env-file", ".env", "dotenv file loaded before environment overrides")
	flags.String("database", "", "SQLite database path (overrides config)")
	flags.String("as", "", "acting user id")
	flags.Bool("json", false, "output JSON")
	flags.BoolP("verbose", "v", false, "log at info level to stderr")
	for _, name := range []string{"config", "env-file", "database", "as", "json", "verbose"} {
		_ = app.v.BindPFlag(name, flags.Lookup(name))
	}
	app.v.SetEnvPrefix(config.EnvPrefix)
	app.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	app.v.AutomaticEnv()

	root.AddCommand(app.serveCmd())
	root.AddCommand(app.migrateCmd())
	root.AddCommand(app.usersCmd())
	root.AddCommand(app.caseCmd())
	root.AddCommand(app.workloadCmd())
	root.AddCommand(app.outboxCmd())
	root.AddCommand(app.demoCmd())
	return root
}

// loadConfig resolves the config file, env file and flag overrides
func (a *cli) loadConfig() (*config.Config, error) {
	file := a.v.GetString("config")
	if file == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			file = defaultConfigFile
		}
	}

	cfg, err := config.Load(config.Options{ConfigFile: file, EnvFile: a.v.GetString("env-file")})
	if err != nil {
		return nil, err
	}
	if path := a.v.GetString("database"); path != "" {
		cfg.Database.Driver = container.DriverSQLite
		cfg.Database.Path = path
	}
	return cfg, nil
}

// newLogger builds the zap logger. One-shot commands log to stderr at warn
// level so tables on stdout stay clean.
func (a *cli) newLogger(cfg *config.Config, oneShot bool) (*zap.Logger, error) {
	lc := cfg.ToLoggerConfig()
	if oneShot {
		lc.OutputPath = "stderr"
		lc.Format = "console"
		lc.Level = "warn"
		if a.v.GetBool("verbose") {
			lc.Level = "info"
		}
	}
	return utils.NewLogger(lc)
}

// withContainer starts a container for one command and tears it down after.
// Events written during fn are relayed before the container closes.
func (a *cli) withContainer(ctx context.Context, fn func(context.Context, *container.Container) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	return a.runContainer(ctx, cfg, true, fn)
}

func (a *cli) runContainer(ctx context.Context, cfg *config.Config, oneShot bool, fn func(context.Context, *container.Container) error) error {
	logger, err := a.newLogger(cfg, oneShot)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	cc := cfg.ToContainerConfig()
	if oneShot {
		cc.Outbox.RunRelay = false
	}

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}

	runErr := fn(ctx, c)
	closeErr := c.Close()
	return errors.Join(runErr, closeErr)
}

// caller returns the --as user or fails with a hint
func (a *cli) caller() (string, error) {
	id := strings.TrimSpace(a.v.GetString("as"))
	if id == "" {
		return "", fmt.Errorf("acting user required: pass --as <user-id> or set %s_AS", config.EnvPrefix)
	}
	return id, nil
}
