package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/chanmux/pkg/chanmux"
	env "github.com/robotalks/chanmux/pkg/env/daemon"
	fx "github.com/robotalks/chanmux/pkg/framework"
	"github.com/robotalks/chanmux/pkg/rpc"
	"github.com/robotalks/chanmux/pkg/transport"
	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitOverflow
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	code := run(env.NewConfig())
	glog.Flush()
	os.Exit(code)
}

func run(conf *env.Config) int {
	if err := conf.Load(); err != nil {
		glog.Errorf("load config: %v", err)
		return exitConfig
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	muxConf, err := conf.MuxConfig(chanmux.NewMetrics(reg))
	if err != nil {
		glog.Errorf("invalid channels: %v", err)
		return exitConfig
	}
	tr, err := conf.OpenTransport()
	if err != nil {
		glog.Errorf("open transport %s: %v", conf.TransportURL, err)
		return exitFailure
	}
	defer tr.Close()
	mux, err := chanmux.New(muxConf, transport.Lower(tr))
	if err != nil {
		glog.Errorf("create chanmux: %v", err)
		return exitConfig
	}

	server := rpc.NewServer(mux)
	server.MaxWait = conf.MaxWait
	runner := fx.NewRunner().HandleSignals()
	runner.Go(
		fx.NamedRun("transport", tr),
		fx.NamedRun("drainer", mux),
	)
	if conf.RPCAddr != "" {
		ln, err := rpc.Listen(conf.RPCAddr)
		if err != nil {
			glog.Errorf("listen %s: %v", conf.RPCAddr, err)
			runner.Stop()
			runner.Wait()
			return exitFailure
		}
		glog.Infof("rpc listening on %s", conf.RPCAddr)
		runner.Go(fx.NamedRun("rpc", fx.RunnableFunc(func(ctx context.Context) error {
			return server.Serve(ctx, ln)
		})))
	}
	if conf.WebsocketAddr != "" {
		runner.Go(fx.NamedRun("websocket", serveHTTP(conf.WebsocketAddr, server.WebsocketHandler(runner.Context))))
	}
	if conf.MetricsAddr != "" {
		httpMux := http.NewServeMux()
		httpMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		runner.Go(fx.NamedRun("metrics", serveHTTP(conf.MetricsAddr, httpMux)))
	}
	if conf.AnnounceURL != "" {
		announcer, err := mqtt.NewAnnouncer(conf.AnnounceURL, conf.Meta(mux.Channels()))
		if err != nil {
			glog.Warningf("announcer disabled: %v", err)
		} else {
			runner.Go(announcer)
		}
	}

	err = runner.Wait()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, chanmux.ErrOverflow):
		glog.Warning("stopped on overflow, restart required")
		return exitOverflow
	default:
		glog.Errorf("stopped: %v", err)
		return exitFailure
	}
}

func serveHTTP(addr string, handler http.Handler) fx.Runnable {
	return fx.RunnableFunc(func(ctx context.Context) error {
		srv := &http.Server{Addr: addr, Handler: handler}
		glog.Infof("http listening on %s", addr)
		return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
	})
}
