package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/cache"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
// 負責驗證、存在性檢查、快取合併，再把需要一致性的部分交給 Ledger
type CoreUseCase struct {
	ledger   Ledger
	gate     *Gate
	accounts *cache.AccountIDCache
	index    *domain.AccountIndex
	history  *cache.HistoryCache
	now      func() time.Time
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithGate 設定連線名額限制
func WithGate(g *Gate) Option {
	return func(c *CoreUseCase) {
		c.gate = g
	}
}

// WithClock 替換對帳單時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.now = now
	}
}

// NewCoreUseCase 掃描一次所有帳戶，建立存在性快取、slot 索引與歷史快取
func NewCoreUseCase(ctx context.Context, ledger Ledger, opts ...Option) (*CoreUseCase, error) {
	ids, err := ledger.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	index := domain.NewAccountIndex(ids)
	c := &CoreUseCase{
		ledger:   ledger,
		accounts: cache.NewAccountIDCache(ids),
		index:    index,
		history:  cache.NewHistoryCache(index.Len()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccountExists 先問快取，快取不知道才回查資料庫
// 回查失敗視為不存在 (fail closed)：最可能的原因就是帳戶不存在，不值得回 500
// 拿不到連線名額則不同，回傳 ErrPoolTimeout (或 ctx 錯誤) 讓呼叫端回報內部錯誤
func (c *CoreUseCase) AccountExists(ctx context.Context, accountID domain.AccountID) (bool, error) {
	switch c.accounts.Check(accountID) {
	case cache.Exists:
		return true, nil
	case cache.DoesNotExist:
		return false, nil
	}
	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	ok, err := c.ledger.AccountExists(ctx, accountID)
	if err != nil {
		log.Printf("account %d existence fallback: %v", accountID, err)
		return false, nil
	}
	return ok, nil
}

// requireAccount 不存在時回傳 domain.ErrAccountNotFound
func (c *CoreUseCase) requireAccount(ctx context.Context, accountID domain.AccountID) error {
	ok, err := c.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccountNotFound
	}
	return nil
}

// PostTransaction 處理交易
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amount, kind, description: 交易內容
//
// 回傳:
//
//	domain.Balance: 交易後的餘額與額度
//	error: ErrInvalidTransaction / ErrAccountNotFound / ErrLimitExceeded / 其他內部錯誤
func (c *CoreUseCase) PostTransaction(ctx context.Context, accountID domain.AccountID, amount int64, kind string, description string) (domain.Balance, error) {
	tran, err := domain.NewTransaction(accountID, amount, kind, description)
	if err != nil {
		return domain.Balance{}, err
	}
	if err := c.requireAccount(ctx, accountID); err != nil {
		return domain.Balance{}, err
	}

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	defer release()
	return c.ledger.ApplyTransaction(ctx, tran)
}

// GetStatement 取得對帳單
// 在帳戶鎖內：讀餘額 -> 取出快取 -> 只向資料庫要比快取更新的交易 -> 存回快取 -> 合併
func (c *CoreUseCase) GetStatement(ctx context.Context, accountID domain.AccountID) (domain.Statement, error) {
	if err := c.requireAccount(ctx, accountID); err != nil {
		return domain.Statement{}, err
	}

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return domain.Statement{}, err
	}
	defer release()

	slot, _ := c.index.Slot(accountID)
	var statement domain.Statement
	err = c.ledger.ReadSnapshot(ctx, accountID, func(view AccountView) error {
		statement.Balance = view.Balance()
		since, cached := c.history.CheckoutLatest(slot, domain.StatementSize)
		fresh, err := view.TransactionsAfter(since)
		if err != nil {
			return err
		}
		c.history.Stash(slot, fresh)
		statement.Transactions = mergeLatest(fresh, cached, domain.StatementSize)
		return nil
	})
	if err != nil {
		return domain.Statement{}, err
	}
	statement.Date = c.now().UTC()
	return statement, nil
}

// RefreshAccounts 重新掃描帳戶並重建存在性快取
// 帳戶集合固定，目前沒有請求路徑會呼叫
func (c *CoreUseCase) RefreshAccounts(ctx context.Context) error {
	ids, err := c.ledger.ListAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	c.accounts.Refresh(ids)
	return nil
}

// InvalidateAccounts 讓存在性快取失效，之後的檢查一律回查資料庫
func (c *CoreUseCase) InvalidateAccounts() {
	c.accounts.Invalidate()
}

// mergeLatest fresh 與 cached 都已由新到舊，fresh 全部比 cached 新
func mergeLatest(fresh, cached []domain.Transaction, n int) []domain.Transaction {
	out := make([]domain.Transaction, 0, min(n, len(fresh)+len(cached)))
	for _, list := range [][]domain.Transaction{fresh, cached} {
		for _, t := range list {
			if len(out) == n {
				return out
			}
			out = append(out, t)
		}
	}
	return out
}
