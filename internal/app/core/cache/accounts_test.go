package cache

import (
	"testing"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

func TestAccountIDCacheContiguous(t *testing.T) {
	c := NewAccountIDCache([]domain.AccountID{1, 2, 3, 4, 5})
	if !c.contiguous {
		t.Fatal("ids 1..5 should be contiguous")
	}
	for id := domain.AccountID(1); id <= 5; id++ {
		if got := c.Check(id); got != Exists {
			t.Fatalf("check(%d)=%v want exists", id, got)
		}
	}
	for _, id := range []domain.AccountID{0, 6, -1, 100} {
		if got := c.Check(id); got != DoesNotExist {
			t.Fatalf("check(%d)=%v want does-not-exist", id, got)
		}
	}
}

func TestAccountIDCacheSparse(t *testing.T) {
	c := NewAccountIDCache([]domain.AccountID{1, 3, 7})
	if c.contiguous {
		t.Fatal("ids 1,3,7 are not contiguous")
	}
	want := map[domain.AccountID]Presence{
		1: Exists, 2: DoesNotExist, 3: Exists, 4: DoesNotExist, 7: Exists, 8: DoesNotExist,
	}
	for id, p := range want {
		if got := c.Check(id); got != p {
			t.Fatalf("check(%d)=%v want %v", id, got, p)
		}
	}
}

func TestAccountIDCacheEmptyIsInvalidated(t *testing.T) {
	c := NewAccountIDCache(nil)
	if got := c.Check(1); got != Unknown {
		t.Fatalf("check=%v want unknown", got)
	}
}

func TestAccountIDCacheInvalidateAndRefresh(t *testing.T) {
	c := NewAccountIDCache([]domain.AccountID{1, 2, 3})
	c.Invalidate()
	for _, id := range []domain.AccountID{1, 2, 3, 4} {
		if got := c.Check(id); got != Unknown {
			t.Fatalf("after invalidate check(%d)=%v want unknown", id, got)
		}
	}

	c.Refresh([]domain.AccountID{10, 11, 12})
	if got := c.Check(11); got != Exists {
		t.Fatalf("check(11)=%v want exists", got)
	}
	if got := c.Check(2); got != DoesNotExist {
		t.Fatalf("check(2)=%v want does-not-exist", got)
	}
	if !c.contiguous {
		t.Fatal("refresh should recompute the contiguous flag")
	}
}

func TestAccountIDCachePoisonedAnswersUnknown(t *testing.T) {
	c := NewAccountIDCache([]domain.AccountID{1, 2, 3})
	c.mutate(func() { panic("boom") })
	if got := c.Check(2); got != Unknown {
		t.Fatalf("check=%v want unknown after poisoning", got)
	}
	c.Refresh([]domain.AccountID{1, 2, 3})
	if got := c.Check(2); got != Exists {
		t.Fatalf("check=%v want exists after refresh", got)
	}
}

func TestContainsRangeHugeSpan(t *testing.T) {
	ids := map[domain.AccountID]struct{}{1: {}, 1 << 40: {}}
	if containsRange(ids, 1, 1<<40) {
		t.Fatal("two ids cannot cover a huge range")
	}
}
