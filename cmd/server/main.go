/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire engine, notifier, order intake
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: debts.db)
               Use ":memory:" for in-memory database
  -max-debt    Maximum outstanding balance per customer, 0 = unlimited
  -retention   Days a paid debt is kept before automatic purge

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the purge scheduler and event dispatcher
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/debts.db"

  # Cap each customer at 500.00 outstanding
  ./server -max-debt=500

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/debt-ledger/api"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/notify"
	"github.com/warp/debt-ledger/orders"
	"github.com/warp/debt-ledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "debts.db", "SQLite database path")
	maxDebt := flag.Float64("max-debt", 0, "Maximum outstanding balance per customer (0 = unlimited)")
	retention := flag.Int("retention", 365, "Days a paid debt is kept before automatic purge")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Event dispatch
	dispatcher := notify.NewDispatcher(notify.NewLogSender(nil), nil)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Domain wiring
	engine := ledger.NewEngine(store, dispatcher, nil)
	intake := orders.NewIntake(engine, ledger.NewMoney(*maxDebt), nil)
	handler := api.NewHandler(engine, intake, store)

	// Background cleanup of old paid debts
	scheduler := api.NewPurgeScheduler(engine)
	scheduler.Retention = time.Duration(*retention) * 24 * time.Hour
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
