package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/valyala/fasthttp"

	"p2pmessage/pkg/config/banner"
	"p2pmessage/pkg/signals"
	"p2pmessage/pkg/state/logger"
)

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(os.Stdout, a.eff, a.self.String(), verStr)
}

// startHTTP starts the fasthttp node server and, if enabled, the event
// stream listener. Either one failing is delivered on the returned channel.
func (a *App) startHTTP(_ context.Context) <-chan error {
	cfg := a.eff.Config

	const (
		readBufferSize       = 64 * 1024
		readTimeout          = 30 * time.Second
		writeTimeout         = 30 * time.Second
		idleTimeout          = 60 * time.Second
		maxKeepaliveDuration = 5 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Name:                 "p2pmessage",
		Handler:              a.api.Handler(),
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(cfg.Server.MaxRequestBody.Int64()),
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	errCh := make(chan error, 2)
	go func() {
		addr := a.eff.Addr
		if cert, key := cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile; cert != "" {
			errCh <- a.srvFast.ListenAndServeTLS(addr, cert, key)
			return
		}
		errCh <- a.srvFast.ListenAndServe(addr)
	}()

	if cfg.Events.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/v1/events", signals.Handler(a.hub, signals.HandlerOptions{APIKeys: cfg.Security.APIKeys}))
		a.events = &http.Server{
			Addr:              cfg.Events.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("events_listening", "addr", cfg.Events.Address)
			errCh <- a.events.ListenAndServe()
		}()
	}
	return errCh
}
