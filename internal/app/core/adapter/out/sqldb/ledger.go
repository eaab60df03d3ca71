package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Limit   int64 `gorm:"column:credit_limit"`
	Balance int64
	// LastTxAt 最後一筆交易的時間戳 (微秒)，用來保證同帳戶時間戳嚴格遞增
	LastTxAt int64 `gorm:"column:last_tx_at"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RefID       []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.Transaction.ID
	AccountID   int64  `gorm:"column:account_id"`
	Amount      int64
	Kind        string `gorm:"type:char(1)"`
	Description string
	PostedAt    int64 `gorm:"column:posted_at"` // Unix 微秒
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// SQLLedger 以資料庫為權威來源的帳本
// 每個操作都是一個資料庫交易，開頭以 SELECT ... FOR UPDATE 鎖住該帳戶那一列，
// 同帳戶的寫入與對帳單讀取因此完全排序，不同帳戶互不影響
type SQLLedger struct {
	db *gorm.DB
}

func NewSQLLedger(db *gorm.DB) *SQLLedger {
	return &SQLLedger{
		db: db,
	}
}

// ApplyTransaction 悲觀鎖 -> 檢查額度 -> 更新餘額 -> 寫交易紀錄，全部在同一個資料庫交易內
func (ledger *SQLLedger) ApplyTransaction(ctx context.Context, tran *domain.Transaction) (domain.Balance, error) {
	var balance domain.Balance
	err := ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := lockAccount(tx, tran.AccountID)
		if err != nil {
			return err
		}

		account := domain.NewAccount(domain.AccountID(acc.ID), acc.Limit, acc.Balance)
		if err := account.Apply(tran.Kind, tran.Amount); err != nil {
			return err
		}
		postedAt := domain.NextPostedAt(time.Now(), time.UnixMicro(acc.LastTxAt))

		// 更新資料庫
		res := tx.Model(&sqlAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"balance":    account.Balance,
				"last_tx_at": postedAt.UnixMicro(),
			})
		if res.Error != nil {
			return res.Error
		}

		// 建立交易紀錄
		row := sqlTransaction{
			RefID:       tran.ID[:],
			AccountID:   acc.ID,
			Amount:      tran.Amount,
			Kind:        tran.Kind.String(),
			Description: tran.Description,
			PostedAt:    postedAt.UnixMicro(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		tran.PostedAt = postedAt
		balance = account.Snapshot()
		return nil
	})
	if err != nil {
		return domain.Balance{}, err
	}
	return balance, nil
}

// ReadSnapshot 在同一個資料庫交易內鎖住帳戶列後執行 fn
func (ledger *SQLLedger) ReadSnapshot(ctx context.Context, accountID domain.AccountID, fn func(view usecase.AccountView) error) error {
	return ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}
		return fn(&txView{tx: tx, account: acc})
	})
}

// AccountExists 存在性快取失效時的回查
func (ledger *SQLLedger) AccountExists(ctx context.Context, accountID domain.AccountID) (bool, error) {
	var n int64
	err := ledger.db.WithContext(ctx).Model(&sqlAccount{}).Where("id = ?", int64(accountID)).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListAccountIDs 全表掃描帳戶 ID
func (ledger *SQLLedger) ListAccountIDs(ctx context.Context) ([]domain.AccountID, error) {
	var raw []int64
	if err := ledger.db.WithContext(ctx).Model(&sqlAccount{}).Order("id").Pluck("id", &raw).Error; err != nil {
		return nil, err
	}
	ids := make([]domain.AccountID, len(raw))
	for i, id := range raw {
		ids[i] = domain.AccountID(id)
	}
	return ids, nil
}

// lockAccount SELECT ... FOR UPDATE
// SQLite 不支援列鎖，gorm 的 sqlite dialector 會略過此子句，由單一連線的連線池排序
func lockAccount(tx *gorm.DB, accountID domain.AccountID) (sqlAccount, error) {
	var acc sqlAccount
	err := lockQuery(tx, accountID).Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sqlAccount{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return sqlAccount{}, fmt.Errorf("failed to lock account %d: %w", accountID, err)
	}
	return acc, nil
}

func lockQuery(tx *gorm.DB, accountID domain.AccountID) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", int64(accountID))
}

// txView 只在 ReadSnapshot 的資料庫交易內有效
type txView struct {
	tx      *gorm.DB
	account sqlAccount
}

func (v *txView) Balance() domain.Balance {
	return domain.Balance{Total: v.account.Balance, Limit: v.account.Limit}
}

func (v *txView) TransactionsAfter(after time.Time) ([]domain.Transaction, error) {
	var rows []sqlTransaction
	err := v.tx.Where("account_id = ? AND posted_at > ?", v.account.ID, after.UnixMicro()).
		Order("posted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (row *sqlTransaction) toDomain() (domain.Transaction, error) {
	id, err := uuid.FromBytes(row.RefID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d has a bad ref_id: %w", row.ID, err)
	}
	kind, err := domain.ParseKind(row.Kind)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d: %w", row.ID, err)
	}
	return domain.Transaction{
		ID:          id,
		AccountID:   domain.AccountID(row.AccountID),
		Amount:      row.Amount,
		Kind:        kind,
		Description: row.Description,
		PostedAt:    time.UnixMicro(row.PostedAt).UTC(),
	}, nil
}

var _ usecase.Ledger = (*SQLLedger)(nil)
