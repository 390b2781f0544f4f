package cli

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chairtools/chairstat/internal/config"
	"github.com/chairtools/chairstat/internal/style"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v *viper.Viper

	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string
	quiet        bool
	verbose      bool

	snapshotIn  string
	snapshotOut string
	noCache     bool
}

// newRootCmd builds the command tree with a fresh configuration.
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "chairstat",
		Short: "Review statistics for program chairs",
		Long: `chairstat reads a venue on an OpenReview-style review platform and reports
reviewer capacity, review progress and senior area chair recommendations.

Credentials come from flags, CHAIRSTAT_* environment variables (a .env file is
loaded too), the config file, or an interactive prompt.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			a.initLogging(cmd)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.chairstat/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "disabled", "log level (debug, info, warn, error)")
	flags.StringVar(&a.outputFormat, "output", "text", "output format (text, json, yaml)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-essential output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	flags.String("venue", "", "venue id, e.g. aclweb.org/ACL/ARR/2023/December")
	flags.String("base-url", "", "platform API base URL (default "+config.Default().BaseURL+")")
	flags.String("username", "", "platform username")

	flags.StringVar(&a.snapshotIn, "snapshot", "", "aggregate a saved snapshot instead of fetching")
	flags.StringVar(&a.snapshotOut, "save-snapshot", "", "save the fetched snapshot to a file")
	flags.BoolVar(&a.noCache, "no-cache", false, "always fetch, ignoring the snapshot cache")

	a.bind("log-level", flags.Lookup("log-level"))
	a.bind("output", flags.Lookup("output"))
	a.bind("quiet", flags.Lookup("quiet"))
	a.bind("verbose", flags.Lookup("verbose"))
	a.bind("venue", flags.Lookup("venue"))
	a.bind("base_url", flags.Lookup("base-url"))
	a.bind("username", flags.Lookup("username"))

	rootCmd.AddCommand(
		newCapacityCmd(a),
		newProgressCmd(a),
		newRecommendCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
		newSchemaCmd(a),
	)

	return rootCmd
}

// Execute runs the command line. SIGINT and SIGTERM cancel in-flight
// requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fang.Execute(ctx, newRootCmd(), fang.WithColorSchemeFunc(func(lightDark lipgloss.LightDarkFunc) fang.ColorScheme {
		return fang.ColorScheme{
			Base:           style.PrimaryTextColor,
			Title:          style.AccentColor,
			Description:    style.PrimaryTextColor,
			Codeblock:      style.CodeColor,
			Program:        style.AccentColor,
			DimmedArgument: style.MutedColor,
			Comment:        style.MutedColor,
			Flag:           style.InfoColor,
			FlagDefault:    style.MutedColor,
			Command:        style.SuccessColor,
			QuotedString:   style.WarningColor,
			Argument:       style.PrimaryTextColor,
			Help:           style.InfoColor,
			Dash:           style.MutedColor,
			ErrorHeader:    [2]color.Color{style.ErrorColor, style.ErrorBgColor},
			ErrorDetails:   style.ErrorColor,
		}
	}))
}

func (a *app) bind(key string, flag *pflag.Flag) {
	_ = a.v.BindPFlag(key, flag)
}

// override sets key from a list flag when it was given. List flags are not
// bound: an unset one would shadow the configured list with its empty
// default.
func (a *app) override(cmd *cobra.Command, name, key string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	if list, ok := flag.Value.(pflag.SliceValue); ok {
		a.v.Set(key, list.GetSlice())
	}
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	_ = godotenv.Load()

	config.SetDefaults(a.v)
	config.ConfigureEnv(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(home + "/.chairstat")
		}
		a.v.AddConfigPath(".")
		a.v.AddConfigPath(".chairstat")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	if err := a.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && a.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	log.Debug().Str("file", a.v.ConfigFileUsed()).Msg("Using config file")
	return nil
}

// initLogging configures the global logger
func (a *app) initLogging(cmd *cobra.Command) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := a.v.GetString("log-level")
	if a.v.GetBool("verbose") && (level == "" || level == "disabled") {
		level = "info"
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	// Configure console output for better readability
	if a.format() == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	} else {
		log.Logger = zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
	}
}

func (a *app) format() string {
	return a.v.GetString("output")
}

// getVersion returns the version information
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}
