package grpc

import (
	"context"
	"errors"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// ServerOptions gRPC Server 的共用設定
//
// 參數:
//
//	keepAlive: 閒置連線保留時間，與 HTTP 的 keep-alive 相同
//
// 回傳:
//
//	[]grpc.ServerOption: 含 keepalive 與 logging interceptor
func ServerOptions(keepAlive time.Duration) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: keepAlive,
		}),
		// 允許客戶端在沒有 stream 時每 5 秒 ping 一次 (連線池預設 10 秒)
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.UnaryInterceptor(LoggingInterceptor),
	}
}

// LoggingInterceptor 每個請求一行: 方法、狀態碼、耗時
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("grpc %s code=%s latency=%s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}

func (s *GrpcServer) PostTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := accountIDField(req)
	if err != nil {
		return nil, err
	}
	amount, ok := intField(req, "amount")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "amount must be a non-negative integer")
	}
	kind, ok := stringField(req, "kind")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "kind must be a string")
	}
	description, ok := stringField(req, "description")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "description must be a string")
	}

	bal, err := s.core.PostTransaction(ctx, accountID, amount, kind, description)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"limit":   bal.Limit,
		"balance": bal.Total,
	})
}

func (s *GrpcServer) GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := accountIDField(req)
	if err != nil {
		return nil, err
	}
	statement, err := s.core.GetStatement(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(statement.Transactions))
	for _, t := range statement.Transactions {
		items = append(items, map[string]any{
			"amount":      t.Amount,
			"kind":        t.Kind.String(),
			"description": t.Description,
			"timestamp":   t.PostedAt.Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]any{
		"balance": map[string]any{
			"total":     statement.Balance.Total,
			"limit":     statement.Balance.Limit,
			"timestamp": statement.Date.Format(time.RFC3339Nano),
		},
		"last_transactions": items,
	})
}

func accountIDField(req *structpb.Struct) (domain.AccountID, error) {
	id, ok := intField(req, "account_id")
	if !ok || id <= 0 {
		return 0, status.Error(codes.NotFound, domain.ErrAccountNotFound.Error())
	}
	return domain.AccountID(id), nil
}

// toStatus 內部錯誤不把細節回給客戶端
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, domain.ErrAccountNotFound.Error())
	case errors.Is(err, domain.ErrInvalidTransaction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrLimitExceeded):
		return status.Error(codes.FailedPrecondition, domain.ErrLimitExceeded.Error())
	}
	log.Printf("grpc internal error: %v", err)
	return status.Error(codes.Internal, "internal error")
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
