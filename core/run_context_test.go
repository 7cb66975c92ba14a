package core

import (
	"context"
	"testing"
)

func TestRunContext_StageAndCommit(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", "agent", NewSession("u1", "s1"), nil)

	rc.SetState("k", 1)
	if _, ok := rc.Session.GetState("k"); ok {
		t.Fatal("staged value should not reach the session before commit")
	}

	if v, ok := rc.GetState("k"); !ok || v.(int) != 1 {
		t.Fatalf("staged value not visible: %v %v", v, ok)
	}

	delta := rc.CommitState()
	if delta["k"].(int) != 1 {
		t.Fatalf("unexpected delta: %+v", delta)
	}

	if v, ok := rc.Session.GetState("k"); !ok || v.(int) != 1 {
		t.Fatal("commit did not apply to session")
	}

	if len(rc.StateDelta()) != 0 {
		t.Error("delta should be cleared after commit")
	}
}

func TestRunContext_NilSession(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", "agent", nil, nil)
	if rc.Session == nil || rc.Logger() == nil {
		t.Fatal("expected defaults")
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter("tool rounds", 2)
	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}
	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}
	if l.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", l.Remaining())
	}
	if err := l.Increment(); err == nil {
		t.Fatal("expected limit error")
	}

	if NewLimiter("x", 0).Remaining() != -1 {
		t.Error("zero max means unlimited")
	}
}
