package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/pendulum-launch/internal/config"
	"github.com/benaskins/pendulum-launch/internal/fleet"
	"github.com/benaskins/pendulum-launch/internal/launcher"
	"github.com/benaskins/pendulum-launch/internal/metrics"
	"github.com/benaskins/pendulum-launch/internal/port"
	"github.com/benaskins/pendulum-launch/internal/process"
)

// spawner starts the nodes; tests replace it.
var spawner process.Spawner = process.ExecSpawner{}

func addLaunchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolP("quiet", "q", false, "Discard all node output")
	f.StringP("log", "l", "", "Write each node's output to <dir>/<name>.log")
	f.Duration("grace", 0, "Send SIGTERM and wait this long before SIGKILL (0 kills immediately)")
	f.Duration("poll", launcher.DefaultPollInterval, "How often to check for shutdown")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9615)")
	f.Bool("watch", false, "Warn when the launch config changes while running")
}

type launchOptions struct {
	quiet       bool
	logDir      string
	grace       time.Duration
	poll        time.Duration
	metricsAddr string
	watch       bool
}

// resolveLaunchOptions merges operator defaults with flags. Flags win.
func resolveLaunchOptions(cmd *cobra.Command, defaults *config.Config) launchOptions {
	f := cmd.Flags()
	var o launchOptions
	o.quiet, _ = f.GetBool("quiet")
	o.logDir, _ = f.GetString("log")
	o.grace, _ = f.GetDuration("grace")
	o.poll, _ = f.GetDuration("poll")
	o.metricsAddr, _ = f.GetString("metrics-addr")
	o.watch, _ = f.GetBool("watch")

	if !f.Changed("log") && !o.quiet {
		o.logDir = defaults.LogDir
	}
	if !f.Changed("grace") && defaults.GracePeriod.Duration > 0 {
		o.grace = defaults.GracePeriod.Duration
	}
	if !f.Changed("poll") && defaults.PollInterval.Duration > 0 {
		o.poll = defaults.PollInterval.Duration
	}
	if !f.Changed("metrics-addr") {
		o.metricsAddr = defaults.MetricsAddr
	}
	return o
}

func runLaunch(cmd *cobra.Command, args []string) error {
	defaults, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading operator config: %w", err)
	}
	opts := resolveLaunchOptions(cmd, defaults)

	// Output flags are checked before anything else is touched.
	output, err := process.NewOutput(opts.quiet, opts.logDir)
	if err != nil {
		return err
	}

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	desc, err := loadFleet(path)
	if err != nil {
		return err
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	warnBusyPorts(desc)

	lopts := []launcher.Option{
		launcher.WithSpawner(spawner),
		launcher.WithOutput(output),
		launcher.WithGracePeriod(opts.grace),
		launcher.WithPollInterval(opts.poll),
	}
	if opts.watch {
		lopts = append(lopts, launcher.WithConfigWatch(path))
	}

	var collector *metrics.Collector
	if opts.metricsAddr != "" {
		collector = metrics.NewCollector("")
		lopts = append(lopts, launcher.WithMetrics(collector))
	}

	l, err := launcher.New(desc, lopts...)
	if err != nil {
		return err
	}

	if collector != nil {
		collector.TrackUptime(l.Uptime)
		stop, err := serveMetrics(opts.metricsAddr, collector)
		if err != nil {
			return err
		}
		defer stop()
	}

	printSummary(cmd.OutOrStdout(), desc, path, output)

	err = l.Run(cmd.Context())
	var serr *launcher.ShutdownError
	if errors.As(err, &serr) {
		slog.Warn("some nodes may still be running", "nodes", serr.Nodes(), "error", err)
		return nil
	}
	return err
}

// warnBusyPorts logs declared ports that something else already listens on.
// The node may still start if it binds differently, so this does not fail.
func warnBusyPorts(desc *fleet.Descriptor) {
	claims, err := desc.Ports()
	if err != nil {
		return
	}
	for _, c := range claims {
		if !port.Available(c.Port) {
			slog.Warn("port already in use", "node", c.Owner, "purpose", c.Purpose, "port", c.Port)
		}
	}
}

func serveMetrics(addr string, c *metrics.Collector) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printSummary(w io.Writer, desc *fleet.Descriptor, path string, output process.Output) {
	fmt.Fprintln(w, headerStyle.Render(desc.Name()))
	fmt.Fprintf(w, "  %s %s\n", subtleStyle.Render("config:"), path)
	out := output.Mode.String()
	if output.Mode == process.OutputLogDir {
		out += " " + output.Dir
	}
	fmt.Fprintf(w, "  %s %s\n", subtleStyle.Render("output:"), out)
	for _, n := range desc.Members() {
		ports := make([]string, len(n.Ports))
		for i, p := range n.Ports {
			ports[i] = p.Purpose + "=" + strconv.Itoa(p.Number)
		}
		fmt.Fprintf(w, "  %-10s %-20s %s\n", subtleStyle.Render(string(n.Role)), n.Name, strings.Join(ports, " "))
	}
	fmt.Fprintln(w, subtleStyle.Render("press Ctrl-C to stop"))
}
