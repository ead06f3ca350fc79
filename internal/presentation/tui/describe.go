package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/muesli/termenv"
	"github.com/samber/lo"
)

// Describe renders the framework as markdown: participants, privileges, actions and flows.
func Describe(m *governance.Model) string {
	fw := m.Framework()
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s (v%s)\n\n", fw.Name, fw.Version)
	if fw.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", fw.Description)
	}
	if len(fw.Jurisdictions) > 0 || len(fw.Geos) > 0 {
		fmt.Fprintf(&sb, "Jurisdictions: %s\n\n", strings.Join(append(fw.Jurisdictions, fw.Geos...), ", "))
	}

	sb.WriteString("## Participants\n\n| Participant | ID | Roles |\n|---|---|---|\n")
	for _, p := range fw.Participants {
		roles := lo.Map(m.RolesOf(context.Background(), p.ID), func(r domain.Role, _ int) string { return string(r) })
		fmt.Fprintf(&sb, "| %s | `%s` | %s |\n", p.Name, p.ID, strings.Join(roles, ", "))
	}

	sb.WriteString("\n## Privileges\n\n| Rule | Grants | When |\n|---|---|---|\n")
	for i, r := range fw.Privileges {
		fmt.Fprintf(&sb, "| privileges[%d] | %s | %s |\n", i, strings.Join(r.Grant, ", "), when(r.When))
	}

	sb.WriteString("\n## Actions\n\n| Action | Protocol | Presentation |\n|---|---|---|\n")
	for _, a := range fw.Actions {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", a.Name, a.Protocol, presentation(a))
	}

	sb.WriteString("\n## Flows\n\n")
	for _, s := range fw.Flows {
		marker := ""
		if s.Initial {
			marker = " (initial)"
		}
		fmt.Fprintf(&sb, "### %s%s\n\n", s.Name, marker)
		fmt.Fprintf(&sb, "- Role: %s\n", s.Role)
		if !s.Actions.IsEmpty() {
			fmt.Fprintf(&sb, "- Actions: `%s`\n", s.Actions.String())
		}
		for _, c := range s.Conditions {
			fmt.Fprintf(&sb, "- Requires: %s with %s\n", c.Type, c.Target)
		}
		if len(s.Next.Success) > 0 {
			fmt.Fprintf(&sb, "- On success: %s\n", strings.Join(s.Next.Success, ", "))
		}
		if len(s.Next.Failure) > 0 {
			fmt.Fprintf(&sb, "- On failure: %s\n", strings.Join(s.Next.Failure, ", "))
		}
		if s.Fallback != "" {
			fmt.Fprintf(&sb, "- Fallback: %s\n", s.Fallback)
		}
		if s.IsSink() {
			sb.WriteString("- Ends the flow\n")
		}
		sb.WriteString("\n")
	}

	if warnings := m.Warnings(); len(warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return sb.String()
}

// when lists the atoms of a predicate, joined by its top-level combinator.
func when(p domain.Predicate) string {
	atoms := lo.Map(p.Atoms(), func(a domain.Atom, _ int) string {
		return fmt.Sprintf("%s=%s", a.Field, a.Value)
	})
	sep := " or "
	if p.Kind == domain.PredicateAll {
		sep = " and "
	}
	return strings.Join(atoms, sep)
}

func presentation(a domain.Action) string {
	pd := a.Details.PresentationDefinition
	if pd.IsZero() {
		return ""
	}
	if pd.Ref != "" {
		return "`" + pd.Ref + "`"
	}
	parts := lo.Map(pd.ByRole, func(rr domain.RoleReference, _ int) string {
		return fmt.Sprintf("%s: `%s`", rr.Role, rr.Ref)
	})
	return strings.Join(parts, "<br>")
}

// PrintDecision writes a colored one-line verdict followed by the rule trace.
func PrintDecision(w io.Writer, d domain.Decision) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	verdict := out.String("DENIED").Bold().Foreground(p.Color("#ef4444"))
	if d.Allowed {
		verdict = out.String("ALLOWED").Bold().Foreground(p.Color("#22c55e"))
	}

	subject := d.Participant
	if d.As != "" {
		subject += " as " + string(d.As)
	}
	fmt.Fprintf(w, "%s %s for %s\n", verdict, d.Action, subject)
	fmt.Fprintf(w, "  roles: %s\n", strings.Join(lo.Map(d.Roles, func(r domain.Role, _ int) string { return string(r) }), ", "))
	fmt.Fprintf(w, "  reason: %s\n", d.Reason)
	for _, r := range d.Rules {
		mark := out.String("-").Faint()
		if r.Matched {
			mark = out.String("+").Foreground(p.Color("#22c55e"))
		}
		fmt.Fprintf(w, "  %s privileges[%d] %v: %s\n", mark, r.Index, r.Grant, r.Reason)
	}
}
