package shell

import "strings"

const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
	PathLeads     = "/leads"
)

const (
	ViewLogin     = "login"
	ViewDashboard = "dashboard"
	ViewLeads     = "leads"
	ViewLead      = "lead"
)

type DecisionKind int

const (
	Render DecisionKind = iota
	Redirect
	Placeholder
)

// Decision is the outcome of resolving a path against the session.
type Decision struct {
	Kind   DecisionKind
	View   string
	Target string
}

func render(view string) Decision {
	return Decision{Kind: Render, View: view}
}

func redirect(target string) Decision {
	return Decision{Kind: Redirect, Target: target}
}

// matchView maps a path inside the authenticated tree onto a view.
// Anything else, the root included, has no view.
func matchView(path string) (string, bool) {
	path = strings.TrimSuffix(path, "/")
	switch {
	case path == PathDashboard:
		return ViewDashboard, true
	case path == PathLeads:
		return ViewLeads, true
	case strings.HasPrefix(path, PathLeads+"/") && len(path) > len(PathLeads)+1:
		return ViewLead, true
	}
	return "", false
}
