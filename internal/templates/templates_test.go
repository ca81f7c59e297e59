package templates

import (
	"context"
	"testing"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

func TestBuiltinTemplates(t *testing.T) {
	types := Types()
	if len(types) != 4 {
		t.Fatalf("expected 4 builtin templates, got %v", types)
	}
	for _, typ := range types {
		tpl := Builtin(typ)
		if len(tpl) != 4 {
			t.Fatalf("template %s: expected 4 domains, got %d", typ, len(tpl))
		}
		for _, d := range tpl {
			if d.Title == "" || len(d.Checks) == 0 {
				t.Fatalf("template %s has an empty domain: %+v", typ, d)
			}
			for _, c := range d.Checks {
				if c.Owner != "TBD" {
					t.Fatalf("template %s check %q owner = %q", typ, c.Title, c.Owner)
				}
			}
		}
	}
}

func TestBuiltinApprovalFlags(t *testing.T) {
	requires := func(tpl []domain.TemplateDomain) []string {
		var titles []string
		for _, d := range tpl {
			for _, c := range d.Checks {
				if c.RequiresApproval {
					titles = append(titles, c.Title)
				}
			}
		}
		return titles
	}
	got := requires(Builtin("cloud"))
	want := []string{"Security Review Completed", "Penetration Testing Sign-off", "Compliance Requirements Met"}
	if len(got) != len(want) {
		t.Fatalf("cloud approval checks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cloud approval checks = %v, want %v", got, want)
		}
	}
	if n := len(requires(Builtin("legacy"))); n != 2 {
		t.Fatalf("legacy approval checks = %d, want 2", n)
	}
}

func TestBuiltinFallsBackToCloud(t *testing.T) {
	unknown := Builtin("mainframe")
	cloud := Builtin("cloud")
	if len(unknown) != len(cloud) || unknown[0].Title != cloud[0].Title {
		t.Fatalf("unknown type did not fall back to cloud template")
	}
}

type stubLibrary struct {
	lib domain.TemplateLibrary
	err error
}

func (s stubLibrary) GetTemplateLibrary(ctx context.Context, id int64) (domain.TemplateLibrary, error) {
	return s.lib, s.err
}

func TestProviderResolve(t *testing.T) {
	saved := domain.TemplateLibrary{
		ID:   5,
		Name: "minimal",
		Domains: []domain.TemplateDomain{
			{Title: "Go/No-Go", Checks: []domain.TemplateCheck{{Title: "Sign-off", Owner: "lead", RequiresApproval: true}}},
		},
	}
	p := &Provider{Lib: stubLibrary{lib: saved}}

	got, err := p.Resolve(context.Background(), "cloud", 5)
	if err != nil {
		t.Fatalf("resolve saved: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Go/No-Go" {
		t.Fatalf("saved library not used: %+v", got)
	}

	got, err = p.Resolve(context.Background(), "product", 0)
	if err != nil {
		t.Fatalf("resolve builtin: %v", err)
	}
	if got[0].Title != "Product & Engineering" {
		t.Fatalf("builtin product template not used: %+v", got[0])
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(Builtin("cloud"))
	if s.DomainCount != 4 || s.CheckCount != 22 {
		t.Fatalf("cloud summary = %+v", s)
	}
	if s.Domains[1].Title != "Security & Compliance" || s.Domains[1].CheckCount != 6 {
		t.Fatalf("domain summary wrong: %+v", s.Domains[1])
	}
}
