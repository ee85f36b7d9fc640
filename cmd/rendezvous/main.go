// Rendezvous server — entry point.
//
// Players find each other through this server: hosts register rooms, clients
// are admitted by room code, and SDP/ICE negotiation is relayed until a
// direct P2P connection is punched through. No gameplay traffic ever passes
// through here.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onewordstudios/sweetspace-sub002/internal/signaling"
)

func main() {
	var addr string
	var logFile string
	flag.StringVar(&addr, "addr", ":61111", "listen address, e.g. :61111")
	flag.StringVar(&logFile, "log", "rendezvous.log", "log file path")
	flag.Parse()

	log := signaling.NewLogger(logFile)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	metrics := signaling.NewMetrics(reg)
	server := signaling.NewServer(log, metrics)

	srv := &http.Server{Addr: addr, Handler: server.Router(reg)}

	go func() {
		log.Infof("rendezvous server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
