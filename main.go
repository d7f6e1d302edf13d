package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"ballclient/client"
	"ballclient/tui"
)

// 构建时注入的版本信息
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ballclient 入口：连接游戏服务端，把权威快照投影到终端界面
func main() {
	cfg, err := client.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "ballclient",
		Short: "Realtime client for the ball arena server",
		Long: `ballclient connects to a ball arena server over WebSocket, sends join,
movement and quit intents, and renders the server's authoritative snapshots.

Without a subcommand it starts the interactive terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(&cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "server WebSocket URL")
	flags.StringVar(&cfg.OriginHost, "origin-host", cfg.OriginHost, "host the client is reached through; loopback switches to ws://localhost:<port>")
	flags.StringVar(&cfg.PlayerName, "name", cfg.PlayerName, "player name used by join")
	flags.BoolVar(&cfg.AutoJoin, "join", cfg.AutoJoin, "join automatically once connected")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rolling log file path")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log every message at debug level")
	flags.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "serve /status, /metrics and /healthz on this address")
	flags.BoolVar(&cfg.RejectStaleTicks, "reject-stale-ticks", cfg.RejectStaleTicks, "drop snapshots whose tick is lower than the current one")
	flags.IntVar(&cfg.MaxLogLines, "max-log-lines", cfg.MaxLogLines, "message log lines kept by the UI")

	rootCmd.AddCommand(
		playCmd(&cfg),
		watchCmd(&cfg),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func playCmd(cfg *client.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Start the interactive terminal UI (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cfg)
		},
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("  Version:    %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Built:      %s\n", date)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}

func runPlay(cfg *client.Config) error {
	url, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	// 使用 zap 日志写入滚动文件，终端留给界面
	if err := client.InitLogger(cfg.LogFile, cfg.Debug); err != nil {
		return err
	}
	defer client.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge := tui.NewBridge()
	runner, reg := newRunner(cfg, bridge)
	startAdmin(ctx, cfg.AdminAddr, runner, reg)

	model := tui.New(runner, tui.Options{
		URL:         url,
		PlayerName:  cfg.PlayerName,
		MaxLogLines: cfg.MaxLogLines,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	go bridge.Forward(loopCtx, program)
	loopDone := make(chan error, 1)
	go func() { loopDone <- runner.Run(loopCtx) }()

	client.Log.Infof("ballclient %s started; endpoint %s", version, url)
	_, err = program.Run()
	cancelLoop()
	<-loopDone
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// newRunner 组装会话运行循环与私有指标注册表
func newRunner(cfg *client.Config, obs client.Observer) (*client.Runner, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	metrics := &client.SessionMetrics{}
	metrics.Register(reg)

	autoJoin := ""
	if cfg.AutoJoin {
		autoJoin = cfg.PlayerName
		if autoJoin == "" {
			autoJoin = client.DefaultPlayerName
		}
	}
	runner := client.NewRunner(client.RunnerOptions{
		Session: client.SessionOptions{
			Dialer:           client.WSDialer{},
			Observer:         obs,
			Metrics:          metrics,
			RejectStaleTicks: cfg.RejectStaleTicks,
		},
		AutoJoin: autoJoin,
	})
	return runner, reg
}

// startAdmin 管理与监控接口；addr 为空时不启动
func startAdmin(ctx context.Context, addr string, runner *client.Runner, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           client.NewAdminRouter(runner.Status, runner.Metrics(), reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		client.Log.Infof("admin listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			client.Log.Errorf("admin listen: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
