package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/sqldb"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
	"github.com/JoeShih716/go-credit-ledger/pkg/database"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP (and optional gRPC) server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if migrateFirst {
				if err := runMigrations(cfg); err != nil {
					return err
				}
			}
			return serve(cfg)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply migrations before serving")
	return cmd
}

func serve(cfg *config.Config) error {
	ctx := context.Background()

	// 1. 初始化 Ledger
	ledger, gate, cleanup, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// 2. 初始化 UseCase (掃描一次帳戶建立快取)
	core, err := usecase.NewCoreUseCase(ctx, ledger, usecase.WithGate(gate))
	if err != nil {
		return err
	}

	// 3. HTTP Server
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           http_adapter.NewRouter(core, os.Stdout),
		IdleTimeout:       cfg.Server.KeepAlive,
		ReadHeaderTimeout: cfg.Server.KeepAlive,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Printf("Starting HTTP server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 4. gRPC Server (選用)
	var grpcServer *grpc.Server
	if cfg.GRPC.Port != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		grpcServer = grpc.NewServer(grpc_adapter.ServerOptions(cfg.Server.KeepAlive)...)
		grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(core))
		reflection.Register(grpcServer)
		go func() {
			log.Printf("Starting gRPC server on :%s", cfg.GRPC.Port)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	log.Println("Server exited")
	return nil
}

// openLedger 依 driver 建立帳本
//
// 回傳:
//
//	usecase.Ledger: 帳本實作
//	*usecase.Gate: 與連線池同容量的名額限制 (記憶體帳本不限制)
//	func(): 關閉資源
//	error: 初始化錯誤
func openLedger(cfg *config.Config) (usecase.Ledger, *usecase.Gate, func(), error) {
	switch cfg.Database.Driver {
	case database.DriverMySQL, database.DriverSQLite:
		dbClient, err := database.NewClient(cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Printf("Connected to %s successfully", cfg.Database.Driver)

		size := cfg.Database.MaxOpenConns
		if cfg.Database.Driver == database.DriverSQLite {
			size = 1
		}
		gate := usecase.NewGate(size, cfg.Database.AcquireTimeout)
		cleanup := func() {
			if err := dbClient.Close(); err != nil {
				log.Printf("Failed to close database: %v", err)
			}
		}
		return sqldb.NewSQLLedger(dbClient.DB()), gate, cleanup, nil

	case config.DriverMemory:
		walFile, err := wal.Open(cfg.WAL.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to init WAL: %w", err)
		}
		ledger, err := memory_adapter.NewMutexLedger(cfg.DomainAccounts(), walFile)
		if err != nil {
			walFile.Close()
			return nil, nil, nil, fmt.Errorf("failed to init MutexLedger: %w", err)
		}
		log.Printf("Loaded %d accounts into memory (WAL %s)", len(cfg.Accounts), cfg.WAL.Path)
		cleanup := func() {
			if err := walFile.Close(); err != nil {
				log.Printf("Failed to close WAL: %v", err)
			}
		}
		return ledger, nil, cleanup, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}
