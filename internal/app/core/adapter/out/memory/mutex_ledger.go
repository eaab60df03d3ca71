package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// accountSlot 單一帳戶的狀態與它自己的鎖
// transactions 依 PostedAt 由舊到新
type accountSlot struct {
	mu           sync.Mutex
	account      domain.Account
	transactions []domain.Transaction
}

// MutexLedger 是一個使用「每個帳戶一把 Mutex」實現的帳本
//
// 結構:
//
//	slots: 帳戶資料 Map，建立後不再新增或刪除，因此讀取 map 本身不需要鎖
//	wal: Write-Ahead Log 實例 (可為 nil，代表不持久化)
//	now: 時間來源
type MutexLedger struct {
	slots map[domain.AccountID]*accountSlot
	wal   *wal.WAL
	now   func() time.Time
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	accounts: 初始帳戶 (固定集合)
//	w: Write-Ahead Log 實例，非 nil 時會先重放既有記錄
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(accounts []domain.Account, w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		slots: make(map[domain.AccountID]*accountSlot, len(accounts)),
		wal:   w,
		now:   time.Now,
	}
	for _, acc := range accounts {
		if acc.Balance+acc.Limit < 0 {
			return nil, fmt.Errorf("account %d starts below its credit limit", acc.ID)
		}
		ledger.slots[acc.ID] = &accountSlot{account: acc}
	}
	if w != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	return m.wal.Replay(func(raw json.RawMessage) error {
		var tran domain.Transaction
		if err := json.Unmarshal(raw, &tran); err != nil {
			return fmt.Errorf("failed to decode wal record: %w", err)
		}
		slot, ok := m.slots[tran.AccountID]
		if !ok {
			return fmt.Errorf("wal record %s: %w", tran.ID, domain.ErrAccountNotFound)
		}
		if err := slot.account.Apply(tran.Kind, tran.Amount); err != nil {
			return fmt.Errorf("wal record %s: %w", tran.ID, err)
		}
		slot.transactions = append(slot.transactions, tran)
		return nil
	})
}

// ApplyTransaction 處理交易請求
// 鎖住單一帳戶：檢查額度 -> 寫 WAL -> 更新記憶體；其他帳戶不受影響
func (m *MutexLedger) ApplyTransaction(ctx context.Context, tran *domain.Transaction) (domain.Balance, error) {
	slot, ok := m.slots[tran.AccountID]
	if !ok {
		return domain.Balance{}, domain.ErrAccountNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Balance{}, err
	}

	// 先在副本上試算，失敗時不修改任何狀態
	next := slot.account
	if err := next.Apply(tran.Kind, tran.Amount); err != nil {
		return domain.Balance{}, err
	}
	posted := *tran
	posted.PostedAt = domain.NextPostedAt(m.now(), slot.lastPostedAt())

	// 1. 寫入 WAL (Critical Path)
	if m.wal != nil {
		if err := m.wal.Append(&posted); err != nil {
			return domain.Balance{}, fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}

	// 2. 更新記憶體
	slot.account = next
	slot.transactions = append(slot.transactions, posted)
	tran.PostedAt = posted.PostedAt
	return next.Snapshot(), nil
}

// ReadSnapshot 持有帳戶鎖執行 fn
func (m *MutexLedger) ReadSnapshot(ctx context.Context, accountID domain.AccountID, fn func(view usecase.AccountView) error) error {
	slot, ok := m.slots[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(slotView{slot: slot})
}

// AccountExists 帳戶是否存在
func (m *MutexLedger) AccountExists(ctx context.Context, accountID domain.AccountID) (bool, error) {
	_, ok := m.slots[accountID]
	return ok, nil
}

// ListAccountIDs 所有帳戶 ID (由小到大)
func (m *MutexLedger) ListAccountIDs(ctx context.Context) ([]domain.AccountID, error) {
	ids := make([]domain.AccountID, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *accountSlot) lastPostedAt() time.Time {
	if len(s.transactions) == 0 {
		return domain.Epoch
	}
	return s.transactions[len(s.transactions)-1].PostedAt
}

// slotView 只在 ReadSnapshot 持有鎖期間使用
type slotView struct {
	slot *accountSlot
}

func (v slotView) Balance() domain.Balance {
	return v.slot.account.Snapshot()
}

func (v slotView) TransactionsAfter(after time.Time) ([]domain.Transaction, error) {
	list := v.slot.transactions
	// 第一筆 PostedAt > after 的位置
	start := sort.Search(len(list), func(i int) bool {
		return list[i].PostedAt.After(after)
	})
	out := make([]domain.Transaction, 0, len(list)-start)
	for i := len(list) - 1; i >= start; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
