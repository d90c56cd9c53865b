package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fedchat/backup"
	"fedchat/config"
	"fedchat/federation"
	"fedchat/store"
	"fedchat/store/memstore"
	"fedchat/store/sqlstore"
)

func main() {
	cfg := config.Load()

	var st store.Store
	if cfg.DB.DSN == "" {
		log.Println("DB_DSN not set, running on the in-memory store")
		st = memstore.New()
	} else {
		var err error
		st, err = sqlstore.New(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			log.Fatal("Error opening database:", err)
		}
	}
	defer st.Close()

	server := federation.New(federation.Options{
		ID:      cfg.Server.ID,
		Name:    cfg.Server.Name,
		Address: cfg.Server.Address,
		Port:    cfg.Server.Port,
		Store:   st,
	})

	server.On(federation.EventPairRequest, func(payload interface{}) {
		if req, ok := payload.(*federation.PairRequest); ok {
			fmt.Printf("Pair request from %q (%s:%d), run: accept %s\n",
				req.Name, req.Address, req.Port, req.PeerID)
		}
	})
	server.On(federation.EventPeerOnline, func(payload interface{}) {
		fmt.Printf("Peer online: %v\n", payload)
	})

	if err := server.Start(); err != nil {
		log.Fatal("Error starting server:", err)
	}
	defer server.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Backup.URL != "" {
		go runBackupLoop(ctx, cfg, st)
	}

	fmt.Println("========================================")
	fmt.Printf("Server Name: %s\n", server.Name())
	fmt.Printf("Server UUID: %s\n", server.ID())
	fmt.Printf("Listening:   %s:%d\n", server.Address(), server.Port())
	fmt.Println("========================================")
	fmt.Println("Type 'help' for commands, Ctrl+C to shutdown")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received...")
		cancel()
	}()

	runCommandLoop(ctx, server)
}

func runBackupLoop(ctx context.Context, cfg *config.Config, st store.Store) {
	client := backup.NewClient(cfg.Backup.URL, cfg.Server.ID)
	ticker := time.NewTicker(cfg.Backup.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Push(st); err != nil {
				log.Println("Backup push failed:", err)
			}
		}
	}
}
