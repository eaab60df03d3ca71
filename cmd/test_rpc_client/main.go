package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	grpcpool "github.com/JoeShih716/go-credit-ledger/pkg/grpc"
)

func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	account := flag.Int64("account", 1, "account id")
	total := flag.Int("n", 10000, "number of debits")
	concurrency := flag.Int("c", 100, "concurrent requests")
	amount := flag.Int64("amount", 1, "amount per debit")
	flag.Parse()

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	startTime := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := client.PostTransaction(ctx, domain.AccountID(*account), *amount, "d", "load")
			switch status.Code(err) {
			case codes.OK:
				accepted.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%1000 == 0 {
					log.Printf("Debit %d failed: %v", idx, err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	statement, err := client.GetStatement(ctx, domain.AccountID(*account))
	if err != nil {
		log.Fatalf("statement: %v", err)
	}

	fmt.Printf("Completed %d requests in %v\n", *total, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	fmt.Printf("Accepted: %d, rejected by limit: %d, failed: %d\n", accepted.Load(), rejected.Load(), failed.Load())
	fmt.Printf("Final balance: %d (limit %d), last %d transactions returned\n",
		statement.Balance.Total, statement.Balance.Limit, len(statement.Transactions))
}
