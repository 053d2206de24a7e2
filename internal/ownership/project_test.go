package ownership_test

import (
	"testing"

	"github.com/dropDatabas3/bricks/internal/ownership"
)

var noteProjector = ownership.Projector[note]{
	Public: func(n note) map[string]any {
		return map[string]any{"id": n.ID}
	},
	OwnerOnly: func(n note) map[string]any {
		return map[string]any{"body": n.Body}
	},
}

func TestProjectForNonOwner(t *testing.T) {
	n := note{ID: "n1", Owner: "alice", Body: "private"}

	out := noteProjector.Project(n, bob)
	if out["id"] != "n1" {
		t.Errorf("id = %v", out["id"])
	}
	if _, leaked := out["body"]; leaked {
		t.Error("owner-only field leaked to a non-owner")
	}
	if out["is_owner"] != false {
		t.Errorf("is_owner = %v, want false", out["is_owner"])
	}
	if len(out) != 2 {
		t.Errorf("unexpected fields: %v", out)
	}
}

func TestProjectForOwner(t *testing.T) {
	n := note{ID: "n1", Owner: "alice", Body: "private"}

	out := noteProjector.Project(n, alice)
	if out["body"] != "private" {
		t.Errorf("body = %v", out["body"])
	}
	if out["is_owner"] != true {
		t.Errorf("is_owner = %v, want true", out["is_owner"])
	}
}

func TestProjectForAnonymous(t *testing.T) {
	n := note{ID: "n1", Owner: "alice", Body: "private"}

	out := noteProjector.Project(n, nil)
	if _, leaked := out["body"]; leaked {
		t.Error("owner-only field leaked to anonymous")
	}
	if out["is_owner"] != false {
		t.Errorf("is_owner = %v, want false", out["is_owner"])
	}
}

func TestProjectWithoutOwnerOnlyMap(t *testing.T) {
	p := ownership.Projector[note]{
		Public: func(n note) map[string]any { return map[string]any{"id": n.ID} },
	}
	out := p.Project(note{ID: "n1", Owner: "alice"}, alice)
	if out["is_owner"] != true {
		t.Errorf("is_owner = %v, want true", out["is_owner"])
	}
	if len(out) != 2 {
		t.Errorf("unexpected fields: %v", out)
	}
}

func TestProjectAllKeepsOrder(t *testing.T) {
	items := []note{
		{ID: "a", Owner: "alice"},
		{ID: "b", Owner: "bob"},
	}
	out := noteProjector.ProjectAll(items, alice)
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0]["id"] != "a" || out[1]["id"] != "b" {
		t.Errorf("order changed: %v", out)
	}
	if out[0]["is_owner"] != true || out[1]["is_owner"] != false {
		t.Errorf("ownership flags wrong: %v", out)
	}
}
