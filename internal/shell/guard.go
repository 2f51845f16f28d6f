package shell

import "context"

// Policy is how strongly a view wants the session checked.
type Policy int

const (
	// Weak trusts local storage: a token is present.
	Weak Policy = iota
	// Strong asks the backend to confirm the token.
	Strong
)

// ViewPolicies lists the check each view runs on its own. Views in the
// authenticated tree are only reachable after the shell's Strong
// bootstrap, so they re-check weakly.
var ViewPolicies = map[string]Policy{
	ViewDashboard: Weak,
	ViewLeads:     Weak,
	ViewLead:      Weak,
}

// Guard gates a single view.
type Guard struct {
	auth Authenticator
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{auth: auth}
}

func (g *Guard) Allow(ctx context.Context, policy Policy) bool {
	if policy == Strong {
		return g.auth.Verify(ctx) != nil
	}
	return g.auth.IsAuthenticated(ctx)
}

// Check renders view when the policy allows it and sends the user to
// the login page otherwise.
func (g *Guard) Check(ctx context.Context, view string) Decision {
	if g.Allow(ctx, ViewPolicies[view]) {
		return render(view)
	}
	return redirect(PathLogin)
}
