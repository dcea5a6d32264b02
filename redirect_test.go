package colltask_test

import (
	"testing"

	"github.com/geopub/colltask"
)

func TestRedirectsResolve(t *testing.T) {
	redirects := colltask.NewRedirects([]colltask.RedirectEntry{
		{OldResource: "old-1", Resource: "new-1"},
		{OldResource: "gone-1", Resource: "", Status: "410"},
		{OldResource: "old-2", Resource: "first"},
		{OldResource: "old-2", Resource: "second"},
	})

	tests := []struct {
		name       string
		requested  string
		expRes     string
		expRemoved bool
	}{
		{name: "no entry resolves to itself", requested: "plain", expRes: "plain"},
		{name: "redirected", requested: "old-1", expRes: "new-1"},
		{name: "removed", requested: "gone-1", expRes: "", expRemoved: true},
		{name: "later entry wins", requested: "old-2", expRes: "second"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, removed := redirects.Resolve(test.requested)
			if res != test.expRes || removed != test.expRemoved {
				t.Fatalf("Resolve(%q) = %q, %v, expected %q, %v",
					test.requested, res, removed, test.expRes, test.expRemoved)
			}
		})
	}
}

func TestRedirectsRetiredSet(t *testing.T) {
	redirects := colltask.NewRedirects([]colltask.RedirectEntry{
		{OldResource: "gone-1", Resource: "", Status: "410"},
		{OldResource: "moved-1", Resource: "new-1", Status: "301"},
		{OldResource: "gone-2", Resource: "replacement", Status: "410"},
	})

	retired := redirects.RetiredSet()
	if len(retired) != 2 {
		t.Fatalf("expected 2 retired resources, got %d: %v", len(retired), retired)
	}
	if !retired["gone-1"] || !retired["gone-2"] {
		t.Fatalf("unexpected retired set: %v", retired)
	}
	if retired["moved-1"] {
		t.Fatal("301 redirect must not be retired")
	}
}

func TestRedirectsEmpty(t *testing.T) {
	redirects := colltask.NewRedirects(nil)
	res, removed := redirects.Resolve("anything")
	if res != "anything" || removed {
		t.Fatalf("Resolve on empty redirects = %q, %v", res, removed)
	}
	if len(redirects.RetiredSet()) != 0 {
		t.Fatal("empty redirects must have empty retired set")
	}
}
