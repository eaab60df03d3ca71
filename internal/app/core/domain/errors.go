package domain

import "errors"

var (
	// ErrAccountNotFound 找不到帳戶 (或帳戶 ID 格式錯誤)
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidTransaction 交易內容不合法，實際原因以 %w 包裝在後
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInvalidKind 交易類型只能是 c 或 d
	ErrInvalidKind = errors.New("kind must be c or d")

	// ErrInvalidDescription 描述必須為 1~10 個字元且不超過 40 bytes
	ErrInvalidDescription = errors.New("description must have 1 to 10 characters and at most 40 bytes")

	// ErrLimitExceeded 扣款後餘額會低於 -limit
	ErrLimitExceeded = errors.New("credit limit exceeded")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)
