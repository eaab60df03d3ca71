package grpc

import (
	"context"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// 服務以 google.protobuf.Struct 作為請求與回應訊息，不需要額外的 .proto 產生碼
const (
	ServiceName           = "ledger.v1.LedgerService"
	MethodPostTransaction = "/" + ServiceName + "/PostTransaction"
	MethodGetStatement    = "/" + ServiceName + "/GetStatement"
)

// LedgerServiceServer gRPC 服務端介面
//
// PostTransaction: {account_id, amount, kind, description} -> {limit, balance}
// GetStatement: {account_id} -> {balance: {total, limit, timestamp}, last_transactions: [...]}
type LedgerServiceServer interface {
	PostTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostTransaction", Handler: postTransactionHandler},
		{MethodName: "GetStatement", Handler: getStatementHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func postTransactionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).PostTransaction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPostTransaction}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).PostTransaction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatementHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetStatement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetStatement}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetStatement(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client 包裝 ClientConn，把 Struct 訊息轉回 domain 型別
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// PostTransaction 送出一筆交易，回傳交易後的餘額
func (c *Client) PostTransaction(ctx context.Context, accountID domain.AccountID, amount int64, kind string, description string) (domain.Balance, error) {
	in, err := structpb.NewStruct(map[string]any{
		"account_id":  int64(accountID),
		"amount":      amount,
		"kind":        kind,
		"description": description,
	})
	if err != nil {
		return domain.Balance{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodPostTransaction, in, out); err != nil {
		return domain.Balance{}, err
	}
	limit, _ := intField(out, "limit")
	balance, _ := signedField(out, "balance")
	return domain.Balance{Total: balance, Limit: limit}, nil
}

// GetStatement 取得對帳單
func (c *Client) GetStatement(ctx context.Context, accountID domain.AccountID) (domain.Statement, error) {
	in, err := structpb.NewStruct(map[string]any{"account_id": int64(accountID)})
	if err != nil {
		return domain.Statement{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetStatement, in, out); err != nil {
		return domain.Statement{}, err
	}
	return decodeStatement(out)
}

func decodeStatement(s *structpb.Struct) (domain.Statement, error) {
	var st domain.Statement
	bal := s.GetFields()["balance"].GetStructValue()
	if bal == nil {
		return st, fmt.Errorf("statement without balance")
	}
	st.Balance.Total, _ = signedField(bal, "total")
	st.Balance.Limit, _ = intField(bal, "limit")
	date, err := time.Parse(time.RFC3339Nano, bal.GetFields()["timestamp"].GetStringValue())
	if err != nil {
		return st, fmt.Errorf("statement timestamp: %w", err)
	}
	st.Date = date

	items := s.GetFields()["last_transactions"].GetListValue().GetValues()
	st.Transactions = make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		fields := item.GetStructValue()
		var t domain.Transaction
		t.Amount, _ = intField(fields, "amount")
		if err := t.Kind.UnmarshalText([]byte(fields.GetFields()["kind"].GetStringValue())); err != nil {
			return st, err
		}
		t.Description = fields.GetFields()["description"].GetStringValue()
		if t.PostedAt, err = time.Parse(time.RFC3339Nano, fields.GetFields()["timestamp"].GetStringValue()); err != nil {
			return st, fmt.Errorf("transaction timestamp: %w", err)
		}
		st.Transactions = append(st.Transactions, t)
	}
	return st, nil
}

// maxExactNumber Struct 的數字是 float64，超過 2^53 就不再精確
const maxExactNumber = 1 << 53

// intField 讀取非負整數欄位
func intField(s *structpb.Struct, name string) (int64, bool) {
	n, ok := signedField(s, name)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

func signedField(s *structpb.Struct, name string) (int64, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > maxExactNumber {
		return 0, false
	}
	return int64(f), true
}

func stringField(s *structpb.Struct, name string) (string, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", false
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return str.StringValue, true
}
