package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invitelink/internal/endpoint"
	"invitelink/internal/identity"
	"invitelink/pkg/core"
	"invitelink/pkg/handler"
	"invitelink/pkg/router"
	"invitelink/pkg/supervisor"
)

// Set with -ldflags "-X main.version=... -X main.defaultEndpoint=...".
var (
	version         = "dev"
	defaultEndpoint = "wss://invitelink.example.com"
)

const logLevelEnv = "INVITELINK_LOG_LEVEL"

const banner = `------------------------------------------------------------------------------
                               invitelink %s

        Invite your friends and play together, right from your own machine.
------------------------------------------------------------------------------

`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stdout, banner, version)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                "invitelink [options]",
		Short:              "Keeps this machine connected to the invitation server.",
		Version:            version,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run(cmd.Context(), cmd.OutOrStdout())
			return nil
		},
	}
	cmd.SetVersionTemplate("Version: {{.Version}}\n")
	cmd.Flags().BoolP("version", "v", false, "Display the version of the program")
	cmd.Flags().BoolP("help", "h", false, "Display this help message")
	return cmd
}

// run connects until the supervisor terminates, then waits for the user to
// interrupt the process so the last message stays on screen.
func run(ctx context.Context, out io.Writer) {
	config := core.DefaultConfig()

	idPath, err := identity.DefaultPath()
	if err != nil {
		fail(ctx, out, newLogger(out, config.LogLevel, ""), err)
		return
	}

	override, err := endpoint.ReadOverride(filepath.Join(filepath.Dir(idPath), endpoint.OverrideFile))
	if err != nil {
		fail(ctx, out, newLogger(out, config.LogLevel, ""), err)
		return
	}

	if override != nil && override.LogLevel != "" {
		config.WithLogLevel(override.LogLevel)
	}
	logger := newLogger(out, config.LogLevel, os.Getenv(logLevelEnv))

	addr, err := resolveAddress(idPath, override, logger)
	if err != nil {
		fail(ctx, out, logger, err)
		return
	}

	serve(ctx, out, logger, config, addr, newRouter(logger))
}

func newRouter(logger zerolog.Logger) *router.Router {
	routes := router.New()
	routes.SetLogger(logger)
	routes.Handle("exit", router.ExitHandler)
	routes.Handle("message", router.MessageHandler)
	return routes
}

// serve runs the supervisor against addr. The callback pump keeps ticking
// until ctx ends, including while waiting for the user after termination.
func serve(ctx context.Context, out io.Writer, logger zerolog.Logger, config *core.Config, addr string, routes *router.Router) {
	guard := handler.NewGuard(routes)
	pump := handler.NewPump(guard, config.PumpInterval)
	pump.SetLogger(logger)
	pump.Start(ctx)
	defer pump.Stop()

	s, err := supervisor.New(addr, guard, config)
	if err != nil {
		fail(ctx, out, logger, err)
		return
	}
	s.SetLogger(logger)

	result := s.Run(ctx)
	if result.Reason == supervisor.ReasonCancelled {
		return
	}
	awaitExit(ctx, out)
}

func resolveAddress(idPath string, override *endpoint.Override, logger zerolog.Logger) (string, error) {
	id, err := identity.LoadOrCreate(idPath, identity.Generate)
	if err != nil {
		return "", err
	}

	base := endpoint.Resolve(override, defaultEndpoint)
	if base != defaultEndpoint {
		logger.Info().Str("url", base).Msg("using custom endpoint URL")
	}
	return endpoint.BuildURL(base, version, id.UUID, endpoint.NewSessionID())
}

func fail(ctx context.Context, out io.Writer, logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("cannot start")
	awaitExit(ctx, out)
}

func awaitExit(ctx context.Context, out io.Writer) {
	fmt.Fprintln(out, "Press Ctrl+C to exit...")
	<-ctx.Done()
}

// newLogger builds the console logger. A valid env level wins over level.
func newLogger(out io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env != "" {
		if envLvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(env))); err == nil {
			lvl = envLvl
		}
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
