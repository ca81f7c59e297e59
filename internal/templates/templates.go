// Package templates provides the seed structure for new handovers. A builtin
// library ships with the binary; saved libraries in the database take
// precedence when a handover is created from one.
package templates

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kanwarsx-prog/opsHandover/internal/domain"
)

//go:embed builtin.yml
var builtinYAML []byte

// DefaultType is the fallback when a handover type has no builtin template.
const DefaultType = "cloud"

type builtinCheck struct {
	Title            string `yaml:"title"`
	Owner            string `yaml:"owner"`
	RequiresApproval bool   `yaml:"requires_approval"`
}

type builtinDomain struct {
	Title  string         `yaml:"title"`
	Checks []builtinCheck `yaml:"checks"`
}

var builtin = mustLoadBuiltin()

func mustLoadBuiltin() map[string][]builtinDomain {
	var out map[string][]builtinDomain
	if err := yaml.Unmarshal(builtinYAML, &out); err != nil {
		panic(fmt.Sprintf("templates: bad builtin library: %v", err))
	}
	return out
}

// Types lists the handover types with a builtin template, sorted.
func Types() []string {
	types := make([]string, 0, len(builtin))
	for t := range builtin {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Builtin returns the builtin template for a handover type. Unknown types
// fall back to the cloud template.
func Builtin(handoverType string) []domain.TemplateDomain {
	tpl, ok := builtin[handoverType]
	if !ok {
		tpl = builtin[DefaultType]
	}
	domains := make([]domain.TemplateDomain, len(tpl))
	for i, d := range tpl {
		checks := make([]domain.TemplateCheck, len(d.Checks))
		for j, c := range d.Checks {
			owner := c.Owner
			if owner == "" {
				owner = "TBD"
			}
			checks[j] = domain.TemplateCheck{Title: c.Title, Owner: owner, RequiresApproval: c.RequiresApproval}
		}
		domains[i] = domain.TemplateDomain{Title: d.Title, Checks: checks}
	}
	return domains
}

// Library is the saved-template lookup, implemented by the repo.
type Library interface {
	GetTemplateLibrary(ctx context.Context, id int64) (domain.TemplateLibrary, error)
}

// Provider resolves the domain structure to seed a new handover with.
type Provider struct {
	Lib Library
}

// Resolve returns the seed domains for a handover. When templateID is set
// the saved library is used, otherwise the builtin template for the type.
func (p *Provider) Resolve(ctx context.Context, handoverType string, templateID int64) ([]domain.TemplateDomain, error) {
	if templateID != 0 {
		if p == nil || p.Lib == nil {
			return nil, fmt.Errorf("no template library configured")
		}
		lib, err := p.Lib.GetTemplateLibrary(ctx, templateID)
		if err != nil {
			return nil, err
		}
		return lib.Domains, nil
	}
	return Builtin(handoverType), nil
}

// Summary describes a template for preview before a handover is created.
type Summary struct {
	DomainCount int             `json:"domain_count"`
	CheckCount  int             `json:"check_count"`
	Domains     []DomainSummary `json:"domains"`
}

type DomainSummary struct {
	Title      string `json:"title"`
	CheckCount int    `json:"check_count"`
}

// Summarize counts the domains and checks in a template.
func Summarize(domains []domain.TemplateDomain) Summary {
	s := Summary{DomainCount: len(domains), Domains: make([]DomainSummary, len(domains))}
	for i, d := range domains {
		s.CheckCount += len(d.Checks)
		s.Domains[i] = DomainSummary{Title: d.Title, CheckCount: len(d.Checks)}
	}
	return s
}
