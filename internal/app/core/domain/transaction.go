package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DescriptionMaxChars 描述最多 10 個字元 (rune)
	DescriptionMaxChars = 10
	// DescriptionMaxBytes 描述以 UTF-8 編碼後最多 40 bytes
	DescriptionMaxBytes = 40
	// StatementSize 對帳單最多回傳的交易筆數
	StatementSize = 10
)

// Kind 交易類型
type Kind byte

const (
	// 入帳
	KindCredit Kind = 'c'
	// 扣款
	KindDebit Kind = 'd'
)

// ParseKind 只接受 "c" 與 "d"
func ParseKind(s string) (Kind, error) {
	switch s {
	case "c":
		return KindCredit, nil
	case "d":
		return KindDebit, nil
	}
	return 0, ErrInvalidKind
}

func (k Kind) String() string {
	return string(rune(k))
}

// MarshalText WAL 與 JSON 以 "c"/"d" 表示
func (k Kind) MarshalText() ([]byte, error) {
	if k != KindCredit && k != KindDebit {
		return nil, ErrInvalidKind
	}
	return []byte{byte(k)}, nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Transaction 交易，建立後不可修改
type Transaction struct {
	// ID: 交易追蹤號 (UUID)
	ID          uuid.UUID `json:"id"`
	AccountID   AccountID `json:"account_id"`
	Amount      int64     `json:"amount"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	// PostedAt: 由儲存層在寫入時指定，同一帳戶內嚴格遞增 (微秒精度)
	PostedAt time.Time `json:"posted_at"`
}

// NewTransaction 驗證輸入並建立一筆尚未寫入的交易
// 驗證失敗時回傳的錯誤同時符合 ErrInvalidTransaction 與實際原因
func NewTransaction(accountID AccountID, amount int64, kind string, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, invalid(ErrAmountMustBePositive)
	}
	k, err := ParseKind(kind)
	if err != nil {
		return nil, invalid(err)
	}
	if err := ValidateDescription(description); err != nil {
		return nil, invalid(err)
	}
	return &Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        k,
		Description: description,
	}, nil
}

// ValidateDescription 空字串、超過 40 bytes、超過 10 個字元皆不合法
func ValidateDescription(description string) error {
	if description == "" ||
		len(description) > DescriptionMaxBytes ||
		utf8.RuneCountInString(description) > DescriptionMaxChars {
		return ErrInvalidDescription
	}
	return nil
}

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidTransaction, reason)
}

// NextPostedAt 回傳下一筆交易的時間戳
// 同一帳戶的時間戳必須嚴格遞增，否則「大於上次看到的時間」這個條件可能漏掉同一微秒寫入的交易
func NextPostedAt(now, last time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	if !t.After(last) {
		t = last.UTC().Add(time.Microsecond)
	}
	return t
}

// Epoch 歷史快取為空時使用的時間戳
var Epoch = time.UnixMicro(0).UTC()
