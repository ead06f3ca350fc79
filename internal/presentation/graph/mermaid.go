package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/charter/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
	Aborted       bool
}

// OverlayFor builds the overlay of a session.
func OverlayFor(s *domain.Session) *GraphOverlay {
	return &GraphOverlay{
		VisitedStates: s.History,
		CurrentState:  s.CurrentState,
		Aborted:       s.Status == domain.StatusAborted,
	}
}

// GenerateMermaid produces a Mermaid flowchart of the flow states.
// Shapes:
// - Initial: (["Stadium"])
// - Sink: [["Subroutine"]]
// - Default: ["Rectangle"]
// Success edges are solid, failure and fallback edges dotted, and OR branches that route
// on their own are labelled with the branch action.
func GenerateMermaid(flows []domain.FlowState, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, state := range flows {
		safeID := sanitizeMermaidID(state.Name)

		opener, closer := "[", "]"
		switch {
		case state.Initial:
			opener, closer = "([", "])"
		case state.IsSink():
			opener, closer = "[[", "]]"
		}

		label := fmt.Sprintf("%s <br/> %s", state.Name, state.Role)
		if !state.Actions.IsEmpty() {
			label += " <br/> " + escape(state.Actions.String())
		}
		for _, c := range state.Conditions {
			label += fmt.Sprintf(" <br/> requires %s(%s)", c.Type, c.Target)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for _, to := range state.Next.Success {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(to))
		}
		for _, route := range branchRoutes(state.Actions) {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(route.label), sanitizeMermaidID(route.to))
		}
		for _, to := range state.Next.Failure {
			fmt.Fprintf(&sb, "    %s -. \"failure\" .-> %s\n", safeID, sanitizeMermaidID(to))
		}
		if state.Fallback != "" {
			fmt.Fprintf(&sb, "    %s -. \"fallback\" .-> %s\n", safeID, sanitizeMermaidID(state.Fallback))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on the light fills under both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef aborted fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, name := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(name)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentState != "" {
			class := "current"
			if overlay.Aborted {
				class = "aborted"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(overlay.CurrentState), class)
		}
	}

	return sb.String()
}

type route struct {
	label string
	to    string
}

// branchRoutes lists the sub-expressions that carry their own next state.
func branchRoutes(e domain.ActionExpr) []route {
	var out []route
	if e.Next != "" {
		label := e.Action
		if e.Kind != domain.ExprLeaf {
			label = e.String()
			label = label[:strings.LastIndex(label, "=>")]
		}
		out = append(out, route{label: label, to: e.Next})
	}
	for _, c := range e.Children {
		out = append(out, branchRoutes(c)...)
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
