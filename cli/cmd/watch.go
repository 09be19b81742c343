package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/common/middleware"
	"github.com/parkline/parkpos/internal/apierr"
	"github.com/parkline/parkpos/internal/app"
	"github.com/parkline/parkpos/internal/notify"
	"github.com/parkline/parkpos/internal/router"
	"github.com/parkline/parkpos/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the current shift until the session ends",
	Long: `Poll the current shift and print balance changes. The command stops
when the session ends: after a logout on another terminal, an expired
credential, or Ctrl-C. With --metrics-addr, client metrics are served
at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if interval <= 0 {
			return errors.New("--interval must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if metricsAddr != "" {
			srv, _, err := serveMetrics(metricsAddr, a.Logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		return watchShift(ctx, a, code, interval)
	},
}

func serveMetrics(addr string, logger *logging.Logger) (*http.Server, string, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{
		Handler:           middleware.RequestID(middleware.AccessLog(logger)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", logging.Error(err))
		}
	}()
	output.Info("Metrics on http://%s/metrics", ln.Addr())
	return srv, ln.Addr().String(), nil
}

// watchShift polls until ctx ends or the shift route is left, which
// happens when the session is invalidated locally or remotely.
func watchShift(ctx context.Context, a *app.App, code string, interval time.Duration) error {
	ended := make(chan session.Reason, 1)
	a.Store.OnInvalidate(func(_ context.Context, reason session.Reason, _ *session.Profile) {
		select {
		case ended <- reason:
		default:
		}
	})
	a.Router.OnNavigate(func(url string) {
		output.Info("-> %s", url)
	})

	scope, err := a.Enter(ctx, router.ShiftRoute)
	if err != nil {
		return err
	}

	var last *float64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		shift, err := a.API.CurrentShift(scope, code)
		switch {
		case err == nil:
			if last == nil || *last != shift.CurrentBalance {
				output.Info("%s  shift %d  open=%t  balance %.2f",
					time.Now().Format(time.TimeOnly), shift.ShiftConnectionHistoryID, shift.Open, shift.CurrentBalance)
				balance := shift.CurrentBalance
				last = &balance
			}
		case apierr.Classify(err) == apierr.KindUnauthorized:
			// The pipeline has already cleared the session.
		case apierr.IsCanceled(err), scope.Err() != nil, ctx.Err() != nil:
		default:
			if n, ok := notify.FromError(err); ok {
				output.Notify(n)
			}
		}

		select {
		case reason := <-ended:
			output.Warn("Session ended (%s).", reason)
			return nil
		case <-scope.Done():
			if ctx.Err() != nil {
				return nil
			}
			select {
			case reason := <-ended:
				output.Warn("Session ended (%s).", reason)
			default:
				output.Warn("Left %s.", router.ShiftRoute)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("service-code", "", "Service code of this point of sale (default from config)")
	watchCmd.Flags().Duration("interval", 30*time.Second, "Polling interval")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}
