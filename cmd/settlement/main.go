// Command settlement runs the rental settlement layer: the REST API, the
// notification consumer and the pending-record auditor.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/rental_settlement/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication()
	if err != nil {
		log.Printf("startup failed: %v", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("settlement stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("settlement stopped")
}
