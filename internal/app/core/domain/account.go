package domain

import (
	"strconv"
)

// AccountID 對外的帳戶識別碼
type AccountID int64

// ParseAccountID 解析路徑上的帳戶 ID，只接受正的十進位整數
func ParseAccountID(raw string) (AccountID, error) {
	if raw == "" || len(raw) > 18 {
		return 0, ErrAccountNotFound
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, ErrAccountNotFound
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrAccountNotFound
	}
	return AccountID(n), nil
}

func (id AccountID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Account 帳戶：信用額度與目前餘額
// 不變量: Balance + Limit >= 0
type Account struct {
	ID      AccountID
	Limit   int64
	Balance int64
}

// Balance 交易成功後或對帳單上回傳的餘額快照
type Balance struct {
	Total int64
	Limit int64
}

func NewAccount(id AccountID, limit int64, balance int64) *Account {
	return &Account{
		ID:      id,
		Limit:   limit,
		Balance: balance,
	}
}

// Snapshot 取得目前餘額快照
func (a *Account) Snapshot() Balance {
	return Balance{Total: a.Balance, Limit: a.Limit}
}

// Apply 將一筆交易套用到帳戶上
// 扣款若會讓 Balance + Limit < 0 則回傳 ErrLimitExceeded，且不修改任何狀態
func (a *Account) Apply(kind Kind, amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}
	switch kind {
	case KindCredit:
		a.Balance += amount
	case KindDebit:
		if a.Balance-amount+a.Limit < 0 {
			return ErrLimitExceeded
		}
		a.Balance -= amount
	default:
		return ErrInvalidKind
	}
	return nil
}
