package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"
	"auction-engine/utils"
)

func main() {
	args := ParseArgs()

	store := ledger.NewMemoryLedger()
	bus := events.NewBus()
	defer bus.Close()

	svc := auction.NewAuctionService(store, bus, args.RuleConfig)

	sched := scheduler.New(store, bus, args.SweepConfig)
	sched.Start(context.Background())
	defer sched.Close()

	router := server.SetupRouter(svc, bus)

	srv := &http.Server{
		Addr:    args.ServerURL,
		Handler: router,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": args.ServerURL})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("shutting down auction server", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
}
