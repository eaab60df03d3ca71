package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的儲存介面 (權威資料來源)
type Ledger interface {
	// ApplyTransaction 在帳戶鎖內原子地檢查額度、寫入交易並更新餘額
	// 額度不足回傳 domain.ErrLimitExceeded 且不做任何修改
	ApplyTransaction(ctx context.Context, tran *domain.Transaction) (domain.Balance, error)
	// ReadSnapshot 持有與 ApplyTransaction 相同的帳戶鎖執行 fn
	// fn 內讀到的餘額與交易一定彼此一致
	ReadSnapshot(ctx context.Context, accountID domain.AccountID, fn func(view AccountView) error) error
	// AccountExists 存在性快取不知道答案時的回查
	AccountExists(ctx context.Context, accountID domain.AccountID) (bool, error)
	// ListAccountIDs 全表掃描，用於建立快取
	ListAccountIDs(ctx context.Context) ([]domain.AccountID, error)
}

// AccountView 帳戶鎖內的唯讀視圖，只在 ReadSnapshot 的 fn 內有效
type AccountView interface {
	Balance() domain.Balance
	// TransactionsAfter 回傳 PostedAt 嚴格大於 after 的交易，由新到舊
	TransactionsAfter(after time.Time) ([]domain.Transaction, error)
}
