package ownership_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dropDatabas3/bricks/internal/ownership"
)

type note struct {
	ID    string
	Owner string
	Body  string
}

func (n note) OwnerID() string { return n.Owner }

func newNoteService(maxPerOwner int) *ownership.Service[note] {
	store := ownership.NewMemStore[note](func(n note) string { return n.ID })
	policy := ownership.Policy[note]{}
	if maxPerOwner > 0 {
		policy.MaxPerOwner = func(v *ownership.Viewer) int { return maxPerOwner }
	}
	return ownership.NewService[note](store, policy,
		func(n *note, ownerID string) { n.Owner = ownerID })
}

var (
	alice = &ownership.Viewer{ID: "alice", Plan: "free"}
	bob   = &ownership.Viewer{ID: "bob", Plan: "free"}
)

func TestCreateAssignsOwnerFromViewer(t *testing.T) {
	svc := newNoteService(0)
	ctx := context.Background()

	// The payload claims someone else; the viewer always wins.
	created, err := svc.Create(ctx, note{ID: "n1", Owner: "mallory", Body: "hi"}, alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Owner != "alice" {
		t.Fatalf("owner = %q, want alice", created.Owner)
	}
}

func TestAnonymousCannotCreate(t *testing.T) {
	svc := newNoteService(0)
	_, err := svc.Create(context.Background(), note{ID: "n1"}, nil)
	if !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestOwnerOnlyDefaults(t *testing.T) {
	svc := newNoteService(0)
	ctx := context.Background()

	if _, err := svc.Create(ctx, note{ID: "n1", Body: "secret"}, alice); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, "n1", alice); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(ctx, "n1", bob); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("foreign read: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Update(ctx, "n1", note{Body: "tampered"}, bob); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("foreign update: err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "n1", bob); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("foreign delete: err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "n1", alice); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestMissingAndForeignAnswerIdentically(t *testing.T) {
	svc := newNoteService(0)
	ctx := context.Background()

	if _, err := svc.Create(ctx, note{ID: "real", Body: "x"}, alice); err != nil {
		t.Fatal(err)
	}

	_, errForeign := svc.Get(ctx, "real", bob)
	_, errMissing := svc.Get(ctx, "no-such-id", bob)
	if !errors.Is(errForeign, ownership.ErrForbidden) || !errors.Is(errMissing, ownership.ErrForbidden) {
		t.Fatalf("responses diverge: foreign=%v missing=%v", errForeign, errMissing)
	}
}

func TestUpdateCannotChangeOwner(t *testing.T) {
	svc := newNoteService(0)
	ctx := context.Background()

	if _, err := svc.Create(ctx, note{ID: "n1", Body: "v1"}, alice); err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(ctx, "n1", note{ID: "n1", Owner: "bob", Body: "v2"}, alice)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Owner != "alice" {
		t.Fatalf("owner drifted to %q", updated.Owner)
	}
	if updated.Body != "v2" {
		t.Fatalf("body = %q, want v2", updated.Body)
	}
}

func TestQuotaEnforcedUnderConcurrency(t *testing.T) {
	const max = 3
	svc := newNoteService(max)
	ctx := context.Background()

	const attempts = max + 1
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, note{ID: uuid.NewString()}, alice)
		}(i)
	}
	wg.Wait()

	created, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ownership.ErrQuotaExceeded):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != max || rejected != 1 {
		t.Fatalf("created=%d rejected=%d, want %d and 1", created, rejected, max)
	}
}

func TestQuotaFreesOnDelete(t *testing.T) {
	svc := newNoteService(1)
	ctx := context.Background()

	if _, err := svc.Create(ctx, note{ID: "n1"}, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, note{ID: "n2"}, alice); !errors.Is(err, ownership.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if err := svc.Delete(ctx, "n1", alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, note{ID: "n2"}, alice); err != nil {
		t.Fatalf("after delete: %v", err)
	}
}

func TestListIsOwnerScoped(t *testing.T) {
	svc := newNoteService(0)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if _, err := svc.Create(ctx, note{ID: id}, alice); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create(ctx, note{ID: "b1"}, bob); err != nil {
		t.Fatal(err)
	}

	items, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Owner != "alice" {
			t.Errorf("foreign item in list: %+v", it)
		}
	}

	if _, err := svc.List(ctx, nil); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("anonymous list: err = %v, want ErrForbidden", err)
	}
}

func TestPolicyOverridesWidenAccess(t *testing.T) {
	store := ownership.NewMemStore[note](func(n note) string { return n.ID })
	policy := ownership.Policy[note]{
		// Public read, owner-only writes.
		CanView: func(n note, v *ownership.Viewer) bool { return true },
	}
	svc := ownership.NewService[note](store, policy,
		func(n *note, ownerID string) { n.Owner = ownerID })
	ctx := context.Background()

	if _, err := svc.Create(ctx, note{ID: "n1", Body: "public"}, alice); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, "n1", bob); err != nil {
		t.Fatalf("public read for bob: %v", err)
	}
	if _, err := svc.Get(ctx, "n1", nil); err != nil {
		t.Fatalf("public read for anonymous: %v", err)
	}
	if _, err := svc.Update(ctx, "n1", note{Body: "x"}, bob); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatalf("write stays owner-only: err = %v", err)
	}
}

func TestPreCreateHookCanReject(t *testing.T) {
	store := ownership.NewMemStore[note](func(n note) string { return n.ID })
	wantErr := errors.New("empty body")
	policy := ownership.Policy[note]{
		PreCreate: func(ctx context.Context, n *note, v *ownership.Viewer) error {
			if n.Body == "" {
				return wantErr
			}
			return nil
		},
	}
	svc := ownership.NewService[note](store, policy,
		func(n *note, ownerID string) { n.Owner = ownerID })

	if _, err := svc.Create(context.Background(), note{ID: "n1"}, alice); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want hook error", err)
	}
	if _, err := svc.Get(context.Background(), "n1", alice); !errors.Is(err, ownership.ErrForbidden) {
		t.Fatal("rejected create must not persist")
	}
}

func TestQuotaRemaining(t *testing.T) {
	svc := newNoteService(2)
	ctx := context.Background()

	ok, err := svc.QuotaRemaining(ctx, alice)
	if err != nil || !ok {
		t.Fatalf("empty owner: ok=%v err=%v", ok, err)
	}
	for _, id := range []string{"n1", "n2"} {
		if _, err := svc.Create(ctx, note{ID: id}, alice); err != nil {
			t.Fatal(err)
		}
	}
	ok, err = svc.QuotaRemaining(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("quota should be exhausted")
	}
}
