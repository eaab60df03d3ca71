package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewTransactionValidation(t *testing.T) {
	cases := []struct {
		name        string
		amount      int64
		kind        string
		description string
		want        error
	}{
		{"ok debit", 500, "d", "groceries", nil},
		{"ok credit", 1, "c", "a", nil},
		{"empty description", 500, "d", "", ErrInvalidDescription},
		{"eleven chars", 500, "d", "abcdefghijk", ErrInvalidDescription},
		{"ten four byte chars", 500, "d", strings.Repeat("😀", 10), nil},
		{"over forty bytes", 500, "d", strings.Repeat("😀", 10) + "x", ErrInvalidDescription},
		{"ten three byte chars", 500, "c", strings.Repeat("界", 10), nil},
		{"zero amount", 0, "c", "x", ErrAmountMustBePositive},
		{"bad kind", 10, "x", "x", ErrInvalidKind},
		{"kind with two letters", 10, "cd", "x", ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tran, err := NewTransaction(1, tc.amount, tc.kind, tc.description)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				if tran.ID.String() == "" || tran.AccountID != 1 {
					t.Fatalf("bad transaction: %+v", tran)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
			if !errors.Is(err, ErrInvalidTransaction) {
				t.Fatalf("err=%v should also match ErrInvalidTransaction", err)
			}
		})
	}
}

func TestAccountApply(t *testing.T) {
	a := NewAccount(1, 1000, 0)

	if err := a.Apply(KindDebit, 500); err != nil {
		t.Fatalf("debit 500: %v", err)
	}
	if a.Balance != -500 {
		t.Fatalf("balance=%d want -500", a.Balance)
	}
	if err := a.Apply(KindDebit, 600); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("debit 600 err=%v want ErrLimitExceeded", err)
	}
	if a.Balance != -500 {
		t.Fatalf("rejected debit changed balance to %d", a.Balance)
	}
	if err := a.Apply(KindDebit, 500); err != nil {
		t.Fatalf("debit to exact limit: %v", err)
	}
	if err := a.Apply(KindCredit, 2000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := a.Snapshot(); got.Total != 1000 || got.Limit != 1000 {
		t.Fatalf("snapshot=%+v", got)
	}
}

func TestParseAccountID(t *testing.T) {
	for _, raw := range []string{"1", "5", "42"} {
		if _, err := ParseAccountID(raw); err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
	}
	for _, raw := range []string{"", "0", "-1", "+1", "a", "1.0", " 1", "99999999999999999999"} {
		if _, err := ParseAccountID(raw); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("%q: err=%v want ErrAccountNotFound", raw, err)
		}
	}
}

func TestNextPostedAtIsStrictlyIncreasing(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 123456789, time.UTC)

	first := NextPostedAt(now, Epoch)
	if !first.Equal(now.Truncate(time.Microsecond)) {
		t.Fatalf("first=%v", first)
	}
	second := NextPostedAt(now, first)
	if !second.After(first) {
		t.Fatalf("second=%v not after %v", second, first)
	}
	// 時鐘倒退也不能產生更舊的時間戳
	third := NextPostedAt(now.Add(-time.Hour), second)
	if !third.After(second) {
		t.Fatalf("third=%v not after %v", third, second)
	}
}

func TestKindText(t *testing.T) {
	b, err := KindDebit.MarshalText()
	if err != nil || string(b) != "d" {
		t.Fatalf("marshal=%q err=%v", b, err)
	}
	var k Kind
	if err := k.UnmarshalText([]byte("c")); err != nil || k != KindCredit {
		t.Fatalf("unmarshal=%v err=%v", k, err)
	}
	if err := k.UnmarshalText([]byte("x")); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err=%v", err)
	}
}

func TestAccountIndex(t *testing.T) {
	x := NewAccountIndex([]AccountID{5, 3, 1, 3})
	if x.Len() != 3 {
		t.Fatalf("len=%d want 3", x.Len())
	}
	for want, id := range []AccountID{1, 3, 5} {
		slot, ok := x.Slot(id)
		if !ok || slot != want {
			t.Fatalf("slot(%d)=%d,%v want %d", id, slot, ok, want)
		}
	}
	if slot, ok := x.Slot(2); ok || slot != -1 {
		t.Fatalf("slot(2)=%d,%v", slot, ok)
	}
}
