package domain

import "time"

// Statement 對帳單：餘額快照加上最近的交易 (依時間由新到舊)
type Statement struct {
	Balance      Balance
	Date         time.Time
	Transactions []Transaction
}
