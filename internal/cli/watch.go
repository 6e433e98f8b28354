package cli

import (
	"fmt"
	"io"
	gosync "sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/workhub/internal/app"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/sync"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notifications as they arrive",
		Long:  `Run the notification session headless and print every new notification. With --metrics-addr, Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr == "" {
				metricsAddr = opts.cfg.Metrics.Addr
			}
			return runWatch(cmd, opts, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *rootOptions, metricsAddr string) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	l := logger.WithComponent("watch")

	tok, err := token()
	if err != nil {
		return err
	}
	if tok == "" {
		return fmt.Errorf("not signed in: run `workhub login` first")
	}

	out := cmd.OutOrStdout()
	session, err := app.NewSession(ctx, opts.cfg, app.SessionOptions{
		Token: tok,
		OnNotice: func(n sync.Notice) {
			l.Warn("notification sync failed", "op", n.Op, "error", n.Err)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			l.Error("closing session failed", "error", err)
		}
	}()

	printer := newPrinter(out)
	cancel := session.Center.Subscribe(printer.view)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		g.Go(func() error {
			return session.Recorder.Serve(gctx, metricsAddr, logger.WithComponent("metrics"))
		})
	}
	g.Go(func() error {
		if err := session.Start(gctx); err != nil {
			return err
		}
		if !session.AuthFlag.Value() {
			session.SignIn()
		}
		<-gctx.Done()
		return nil
	})

	l.Info("watching notifications", "base_url", opts.cfg.API.BaseURL)
	return g.Wait()
}

// printer writes each notification once, the first time a view carries it.
type printer struct {
	out   io.Writer
	mu    gosync.Mutex
	seen  map[string]bool
	state sync.State
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]bool)}
}

func (p *printer) view(v sync.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.State != p.state {
		fmt.Fprintf(p.out, "-- %s (%d unread)\n", v.State, v.UnreadCount)
		p.state = v.State
	}

	// Views are newest first; print oldest first.
	for i := len(v.Notifications) - 1; i >= 0; i-- {
		n := v.Notifications[i]
		if p.seen[n.ID] {
			continue
		}
		p.seen[n.ID] = true
		fmt.Fprintln(p.out, formatLine(n))
	}
}

func formatLine(n model.Notification) string {
	mark := " "
	if !n.Read {
		mark = "*"
	}
	line := fmt.Sprintf("%s %s [%s] %s", mark, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.EventType.Label(), n.Title)
	if n.ActorName != "" {
		line += " (" + n.ActorName + ")"
	}
	return line
}
