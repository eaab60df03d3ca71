package domain

import "sort"

// AccountIndex 把外部帳戶 ID 對應到內部連續的 slot 編號 (0..n-1)
// 啟動時由全表掃描建立，之後不再變動，因此不需要鎖
type AccountIndex struct {
	slots map[AccountID]int
	ids   []AccountID
}

func NewAccountIndex(ids []AccountID) *AccountIndex {
	sorted := make([]AccountID, 0, len(ids))
	seen := make(map[AccountID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	slots := make(map[AccountID]int, len(sorted))
	for i, id := range sorted {
		slots[id] = i
	}
	return &AccountIndex{slots: slots, ids: sorted}
}

// Slot 回傳帳戶的 slot；不在索引內時回傳 -1, false
func (x *AccountIndex) Slot(id AccountID) (int, bool) {
	slot, ok := x.slots[id]
	if !ok {
		return -1, false
	}
	return slot, true
}

// Len slot 數量
func (x *AccountIndex) Len() int {
	return len(x.ids)
}

// IDs 回傳排序後的帳戶 ID 副本
func (x *AccountIndex) IDs() []AccountID {
	out := make([]AccountID, len(x.ids))
	copy(out, x.ids)
	return out
}
