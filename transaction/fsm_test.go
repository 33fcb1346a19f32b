package transaction

import (
	"context"
	"errors"
	"testing"
)

// fakeAction is a minimal Action for exercising the state machine without
// touching a real prefix or cache.
type fakeAction struct {
	name       string
	failOn     func(env *execEnv) error
	executed   *[]string
	reversed   *[]string
}

func (a *fakeAction) Describe() string { return a.name }

func (a *fakeAction) Execute(env *execEnv) error {
	if a.failOn != nil {
		if err := a.failOn(env); err != nil {
			return err
		}
	}
	*a.executed = append(*a.executed, a.name)
	return nil
}

func (a *fakeAction) Reverse(env *execEnv) error {
	*a.reversed = append(*a.reversed, a.name)
	return nil
}

func TestTxnRunCommitsOnSuccess(t *testing.T) {
	var executed, reversed []string
	r := &txnRun{
		env:   &execEnv{},
		opts:  DefaultOptions(),
		links: []Action{&fakeAction{name: "link-a", executed: &executed, reversed: &reversed}},
	}
	final, err := r.run(context.Background(), Preparing)
	if err != nil {
		t.Fatal(err)
	}
	if final != Committed {
		t.Fatalf("got final state %s, want committed", final)
	}
	if len(reversed) != 0 {
		t.Fatalf("no action should have been reversed on success, got %v", reversed)
	}
}

func TestTxnRunRollsBackOnPostLinkFailure(t *testing.T) {
	var executed, reversed []string
	unlink := &fakeAction{name: "unlink-a", executed: &executed, reversed: &reversed}
	link := &fakeAction{name: "link-b", executed: &executed, reversed: &reversed}
	boom := errors.New("post-link script failed")
	post := &fakeAction{name: "post-b", executed: &executed, reversed: &reversed, failOn: func(*execEnv) error { return boom }}

	r := &txnRun{
		env:     &execEnv{},
		opts:    DefaultOptions(),
		unlinks: []Action{unlink},
		links:   []Action{link},
		post:    []Action{post},
	}
	final, err := r.run(context.Background(), Preparing)
	if final != Failed {
		t.Fatalf("got final state %s, want failed", final)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original post-link error to surface, got %v", err)
	}

	// Every action that executed before the failure must have been
	// reversed, in LIFO order.
	want := []string{"link-b", "unlink-a"}
	if len(reversed) != len(want) {
		t.Fatalf("got reversed=%v, want %v", reversed, want)
	}
	for i := range want {
		if reversed[i] != want[i] {
			t.Fatalf("got reversed=%v, want %v", reversed, want)
		}
	}
}

func TestTxnRunNoHandlerForStateFails(t *testing.T) {
	r := &txnRun{env: &execEnv{}, opts: DefaultOptions()}
	final, err := r.run(context.Background(), Committed+100)
	if err == nil {
		t.Fatal("expected an error for an unknown state")
	}
	if final != Failed {
		t.Fatalf("got %s, want failed", final)
	}
}
