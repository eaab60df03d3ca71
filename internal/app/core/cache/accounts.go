// Package cache 提供兩個行程內共享的快取：帳戶存在性快取與交易歷史快取。
// 兩者都以 sync.RWMutex 保護 (單一寫入者)，寫入時若發生 panic 會標記為失效，
// 之後一律回答「不知道 / 空」，讓呼叫端走回查資料庫的冷路徑，而不是把錯誤丟給客戶端。
package cache

import (
	"log"
	"math"
	"sync"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// Presence 帳戶存在性查詢結果
type Presence uint8

const (
	// Unknown 快取失效中，需要回查資料庫
	Unknown Presence = iota
	Exists
	DoesNotExist
)

func (p Presence) String() string {
	switch p {
	case Exists:
		return "exists"
	case DoesNotExist:
		return "does-not-exist"
	}
	return "unknown"
}

// AccountIDCache 記錄資料庫中存在哪些帳戶 ID，避免為了拒絕不存在的帳戶而查一次資料庫
//
// 結構:
//
//	minID, maxID: 最小/最大 ID；minID > maxID 代表快取失效
//	contiguous: [minID, maxID] 之間每個整數都存在
//	ids: 實際存在的 ID 集合
type AccountIDCache struct {
	mu         sync.RWMutex
	minID      domain.AccountID
	maxID      domain.AccountID
	contiguous bool
	ids        map[domain.AccountID]struct{}
	poisoned   bool
}

// NewAccountIDCache 以一次全表掃描的結果建立快取；空集合會得到失效狀態的快取
func NewAccountIDCache(ids []domain.AccountID) *AccountIDCache {
	c := &AccountIDCache{}
	c.load(ids)
	return c
}

// Check 查詢帳戶是否存在
//
// 回傳:
//
//	Unknown: 快取失效 (或曾在寫入時 panic)
//	Exists: 連續區間內部 (O(1)) 或在集合中
//	DoesNotExist: 其他情況
func (c *AccountIDCache) Check(id domain.AccountID) Presence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.poisoned || c.minID > c.maxID {
		return Unknown
	}
	if c.contiguous && id > c.minID && id < c.maxID {
		return Exists
	}
	if _, ok := c.ids[id]; ok {
		return Exists
	}
	return DoesNotExist
}

// Refresh 用新的全表掃描結果重建快取
// 帳戶集合在行程生命週期內固定，目前沒有任何請求路徑會呼叫它，保留給日後動態開戶使用
func (c *AccountIDCache) Refresh(ids []domain.AccountID) {
	c.mutate(func() {
		c.poisoned = false
		c.load(ids)
	})
}

// Invalidate 清空快取，直到下一次 Refresh 前 Check 都會回傳 Unknown
// 與 Refresh 相同，目前沒有呼叫端
func (c *AccountIDCache) Invalidate() {
	c.mutate(func() {
		c.load(nil)
	})
}

// load 呼叫端需持有寫鎖 (或尚未發布)
func (c *AccountIDCache) load(ids []domain.AccountID) {
	c.minID = math.MaxInt64
	c.maxID = math.MinInt64
	c.ids = make(map[domain.AccountID]struct{}, len(ids))
	for _, id := range ids {
		c.ids[id] = struct{}{}
		c.minID = min(c.minID, id)
		c.maxID = max(c.maxID, id)
	}
	c.contiguous = containsRange(c.ids, c.minID, c.maxID)
}

func (c *AccountIDCache) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("account id cache poisoned: %v", r)
			c.poisoned = true
		}
	}()
	fn()
}

// containsRange 檢查集合是否包含 [lo, hi] 的每一個整數
func containsRange(ids map[domain.AccountID]struct{}, lo, hi domain.AccountID) bool {
	if lo > hi {
		return false
	}
	// 集合大小不足時不可能連續，也避免對極大區間逐一檢查
	if uint64(hi-lo) >= uint64(len(ids)) {
		return false
	}
	for i := uint64(0); i <= uint64(hi-lo); i++ {
		if _, ok := ids[lo+domain.AccountID(i)]; !ok {
			return false
		}
	}
	return true
}
