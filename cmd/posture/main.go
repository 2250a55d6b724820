// Command posture serves live pose comparison over HTTP, websocket and gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/feedback"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "localhost:50051", "gRPC feedback stream address (empty disables)")
	dbPath      = flag.String("db", "posture.db", "Reference library database (empty disables)")
	configPath  = flag.String("config", "", "Tuning config JSON file (defaults when empty)")
	referenceID = flag.String("reference", "", "Stored reference id to load at startup")
	debug       = flag.Bool("debug", false, "Mount the /debug/ pages")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("%s starting", version.String())

	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open reference library: %v", err)
		}
		defer store.Close()
	}

	hub := feedback.NewHub(feedback.ConfigFromTuning(cfg))
	if err := hub.Start(); err != nil {
		log.Fatalf("failed to start feedback hub: %v", err)
	}
	defer hub.Stop()

	opts := session.OptionsFromConfig(cfg)
	opts.Publisher = hub
	sess := session.New(opts)
	log.Printf("session %s tolerance=%.2f", sess.ID(), sess.Tolerance())

	if *referenceID != "" {
		if err := loadReference(sess, store, *referenceID); err != nil {
			log.Fatalf("failed to load reference %s: %v", *referenceID, err)
		}
	}

	handler, err := api.NewServer(sess, store, hub, cfg).Handler(*debug)
	if err != nil {
		log.Fatalf("failed to build HTTP handler: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *grpcListen != "" {
		grpcServer := feedback.NewGRPCServer(*grpcListen, feedback.NewGRPCService(hub))
		if err := grpcServer.Start(); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			// Open streams only end once the hub stops.
			hub.Stop()
			grpcServer.Stop()
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              *listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func loadReference(sess *session.Session, store *db.DB, id string) error {
	if store == nil {
		return errors.New("reference library disabled (-db is empty)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ref, err := store.GetReference(ctx, id)
	if err != nil {
		return err
	}
	sess.LoadReference(ref.Sequence, ref.ID, ref.Name)
	return nil
}
