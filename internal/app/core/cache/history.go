package cache

import (
	"log"
	"sync"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// HistoryCache 每個帳戶一個 slot，保存這個行程看過的所有交易
// 交易不可修改且同帳戶時間戳嚴格遞增，所以只要向資料庫要「比最新一筆更新」的部分即可
//
// slot 內部依時間由舊到新存放，Stash 只需 append；Checkout 再反轉成由新到舊的副本
type HistoryCache struct {
	mu       sync.RWMutex
	slots    [][]domain.Transaction
	poisoned bool
}

// NewHistoryCache 建立 n 個空 slot
func NewHistoryCache(n int) *HistoryCache {
	return &HistoryCache{
		slots: make([][]domain.Transaction, n),
	}
}

// Checkout 回傳 slot 最新一筆的時間戳 (沒有資料時為 domain.Epoch) 與完整歷史副本 (由新到舊)
func (c *HistoryCache) Checkout(slot int) (time.Time, []domain.Transaction) {
	return c.CheckoutLatest(slot, -1)
}

// CheckoutLatest 與 Checkout 相同，但只複製最新的 n 筆；n < 0 代表全部
func (c *HistoryCache) CheckoutLatest(slot int, n int) (time.Time, []domain.Transaction) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.poisoned || slot < 0 || slot >= len(c.slots) {
		return domain.Epoch, nil
	}
	list := c.slots[slot]
	if len(list) == 0 {
		return domain.Epoch, nil
	}
	if n < 0 || n > len(list) {
		n = len(list)
	}
	out := make([]domain.Transaction, 0, n)
	for i := len(list) - 1; i >= len(list)-n; i-- {
		out = append(out, list[i])
	}
	return list[len(list)-1].PostedAt, out
}

// Stash 把新交易放到 slot 最前面
// 呼叫端保證 items 由新到舊排序，且全部比快取中的任何一筆都新 (以 PostedAt > 最新時間戳查詢)
// 這裡不做去重
func (c *HistoryCache) Stash(slot int, items []domain.Transaction) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("history cache poisoned: %v", r)
			c.poisoned = true
		}
	}()
	if c.poisoned || slot < 0 || slot >= len(c.slots) {
		return
	}
	list := c.slots[slot]
	for i := len(items) - 1; i >= 0; i-- {
		list = append(list, items[i])
	}
	c.slots[slot] = list
}

// Len 回傳 slot 內快取的交易數
func (c *HistoryCache) Len(slot int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slot < 0 || slot >= len(c.slots) {
		return 0
	}
	return len(c.slots[slot])
}
