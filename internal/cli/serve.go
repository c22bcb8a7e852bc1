package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/codelet/internal/config"
	"github.com/harun/codelet/internal/logger"
	"github.com/harun/codelet/internal/observability"
)

var (
	shutdownTimeout time.Duration
	watchConfig     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session registry and gateway",
	Long: `Run codelet in the foreground: the session registry, the reaper and the
HTTP/websocket gateway. SIGINT or SIGTERM shuts it down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "time allowed for a graceful shutdown")
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", true, "reload the config file when it changes")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the config named by --config and applies --log-level
func loadConfig() (*config.Config, string, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, "", err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, loader.GetConfigPath(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pidFile := getPIDFilePath(cfg)
	if isRunning(pidFile) {
		return fmt.Errorf("codelet is already running (PID file: %s)", pidFile)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := observability.OpenAuditLog(filepath.Join(cfg.DataDir, "audit.jsonl")); err != nil {
		return err
	}
	defer observability.CloseAuditLog()

	app, err := NewApp(cfg, log.Zerolog())
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		return err
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	if watchConfig {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			w, err := config.NewWatcher(config.WatcherConfig{
				Path:     cfgPath,
				Logger:   log.Zerolog(),
				OnReload: func(next *config.Config) { app.ApplyReload(next, log.SetLevel) },
			})
			if err == nil {
				err = w.Start()
			}
			if err != nil {
				zlog := log.Zerolog()
				zlog.Warn().Err(err).Msg("Config watching disabled")
			} else {
				defer w.Stop()
			}
		}
	}

	if addr := app.GatewayAddr(); addr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "codelet listening on %s\n", addr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func getPIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "codelet.pid")
}

// readPID returns the pid recorded in pidFile
func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 checks that the process exists
	return process.Signal(syscall.Signal(0)) == nil
}
