package grpc

import (
	"testing"
)

func TestPoolReusesConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	a, err := p.GetConnection("passthrough:///ledger-a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.GetConnection("passthrough:///ledger-a")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("same target should share one connection")
	}
	c, err := p.GetConnection("passthrough:///ledger-b")
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Fatal("different targets must not share a connection")
	}
}

func TestPoolReplacesClosedConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	first, err := p.GetConnection("passthrough:///ledger")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := p.GetConnection("passthrough:///ledger")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("closed connection should be replaced")
	}

	if err := p.Remove("passthrough:///ledger"); err != nil {
		t.Fatal(err)
	}
	if err := p.Remove("passthrough:///unknown"); err != nil {
		t.Fatal(err)
	}
}
