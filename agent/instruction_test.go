package agent

import (
	"context"
	"testing"

	"github.com/Yaaesthetic/agno/core"
)

func TestInstruction_Static(t *testing.T) {
	sess := core.NewSession("u1", "s1")
	sess.SetState("name", "Ada")
	rc := core.NewRunContext(context.Background(), "r1", "agent", sess, nil)

	ins := NewInstructionFromText("Hello {{ .name }}")
	if !ins.IsStatic() {
		t.Fatal("expected static instruction")
	}

	got, err := ins.Resolve(rc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got != "Hello Ada" {
		t.Fatalf("got %q", got)
	}
}

func TestInstruction_Provider(t *testing.T) {
	rc := core.NewRunContext(context.Background(), "r1", "agent", core.NewSession("u7", "s1"), nil)

	ins := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		return "user is " + rc.UserID, nil
	})
	if ins.IsStatic() {
		t.Fatal("expected dynamic instruction")
	}

	got, err := ins.Resolve(rc)
	if err != nil || got != "user is u7" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestTexts(t *testing.T) {
	if got := Texts("a", "b"); len(got) != 2 || !got[1].IsStatic() {
		t.Fatalf("unexpected instructions: %#v", got)
	}
}
