package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ballclient/client"
)

func watchCmd(cfg *client.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Connect headless and print snapshot summaries",
		Long: `watch connects without a UI, optionally joins (--join), and prints a
line whenever the projected view changes. It exits when the connection closes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cfg, cmd.OutOrStdout())
		},
	}
}

func runWatch(cfg *client.Config, out io.Writer) error {
	url, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	if err := client.InitLogger(cfg.LogFile, cfg.Debug); err != nil {
		return err
	}
	defer client.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := newWatchObserver(out)
	runner, reg := newRunner(cfg, obs)
	startAdmin(ctx, cfg.AdminAddr, runner, reg)

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- runner.Run(loopCtx) }()

	runner.Connect(url)
	select {
	case <-ctx.Done():
	case <-obs.closed:
	}
	cancelLoop()
	<-loopDone

	if obs.failed {
		return fmt.Errorf("connection to %s failed", url)
	}
	return nil
}

// watchObserver 无界面模式的观察者：状态与视图变化输出一行摘要
type watchObserver struct {
	client.NopObserver
	out io.Writer

	closed    chan struct{}
	closeOnce sync.Once
	failed    bool
	last      string
}

func newWatchObserver(out io.Writer) *watchObserver {
	return &watchObserver{out: out, closed: make(chan struct{})}
}

func (o *watchObserver) StatusChanged(state client.State, detail string) {
	fmt.Fprintf(o.out, "● %s (%s)\n", state, detail)
	if state == client.Disconnected {
		o.closeOnce.Do(func() { close(o.closed) })
	}
}

func (o *watchObserver) MessageReceived(msg client.Message, _ []byte) {
	switch m := msg.(type) {
	case client.Welcome:
		fmt.Fprintf(o.out, "welcome: player id %d\n", m.PlayerID)
	case client.Bye:
		fmt.Fprintf(o.out, "bye: %s\n", m.Reason)
	}
}

func (o *watchObserver) ErrorReported(err error) {
	var cerr *client.ConnectionError
	if errors.As(err, &cerr) {
		o.failed = true
	}
	fmt.Fprintf(o.out, "error: %v\n", err)
}

// ViewUpdated 只在人数、点数或自身分数变化时输出，避免逐 tick 刷屏
func (o *watchObserver) ViewUpdated(v client.View) {
	score := "-"
	if s, ok := v.SelfScore(); ok {
		score = fmt.Sprintf("%d", s)
	}
	line := fmt.Sprintf("players=%d dots=%d score=%s", v.PlayerCount, v.DotCount, score)
	if line == o.last {
		return
	}
	o.last = line
	fmt.Fprintf(o.out, "tick %d: %s\n", v.Tick, line)
}
