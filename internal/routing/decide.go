// Package routing holds the single tenant-resolution state machine shared by
// the edge middleware and the route guards.
//
// Decide is a pure function of (auth, tenant, path). The edge middleware sees
// only the auth cookie and calls DecideEdge; the guards feed it full store
// state and loop on ActionCheckAuth/ActionResolve until a terminal action
// comes back. Both views walk the same branches, so their allowlists cannot
// drift apart.
package routing

import "strings"

// AuthView is what the caller knows about authentication.
type AuthView int

const (
	AuthUnknown AuthView = iota
	AuthAuthenticated
	AuthUnauthenticated
)

// TenantView is what the caller knows about tenant resolution.
type TenantView struct {
	// Known is false for the cookie-only edge view, which has no store access.
	Known bool
	// Checked mirrors hasCheckedOrganization.
	Checked bool
	// CurrentID is the resolved tenant id, "" when none.
	CurrentID string
	// Attempted is set once a resolution has run during this navigation.
	Attempted bool
}

// Action is the next step for the caller.
type Action int

const (
	// ActionAllow renders the page.
	ActionAllow Action = iota
	// ActionRedirect navigates to Decision.Location.
	ActionRedirect
	// ActionLogin sends the browser to the external login service.
	ActionLogin
	// ActionCheckAuth asks the caller to run the session check, then decide again.
	ActionCheckAuth
	// ActionResolve asks the caller to resolve the default tenant, then decide again.
	ActionResolve
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	case ActionLogin:
		return "login"
	case ActionCheckAuth:
		return "check_auth"
	case ActionResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// Reason explains a redirect or login action.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNoTenant        Reason = "no_tenant"
	ReasonTenantMismatch  Reason = "tenant_mismatch"
	ReasonTenantRoot      Reason = "tenant_root"
	ReasonTenantExists    Reason = "tenant_exists"
	ReasonMalformed       Reason = "malformed_path"
	ReasonOutsideApp      Reason = "outside_app"
)

// Decision is the outcome of one Decide step.
type Decision struct {
	Action   Action
	Location string
	// OrgID is the org segment taken from the path, when there is one.
	OrgID  string
	Reason Reason
}

// Decide runs one step of the resolution state machine.
func Decide(auth AuthView, t TenantView, path string) Decision {
	switch auth {
	case AuthUnknown:
		return Decision{Action: ActionCheckAuth}
	case AuthUnauthenticated:
		return Decision{Action: ActionLogin, Reason: ReasonUnauthenticated}
	}

	switch {
	case trimTrailingSlash(path) == QuickSetupPath:
		if !t.Known {
			return allow("")
		}
		if !t.Attempted {
			return Decision{Action: ActionResolve}
		}
		if t.CurrentID != "" {
			return redirect(WorkspaceURL(t.CurrentID, ""), ReasonTenantExists, "")
		}
		return allow("")

	case trimTrailingSlash(path) == InvitationsPath:
		return allow("")

	case IsAppRoot(path):
		if !t.Known {
			return allow("")
		}
		if !t.Checked && !t.Attempted {
			return Decision{Action: ActionResolve}
		}
		if t.CurrentID != "" {
			return redirect(WorkspaceURL(t.CurrentID, ""), ReasonTenantRoot, "")
		}
		return redirect(QuickSetupPath, ReasonNoTenant, "")

	case strings.HasPrefix(path, AppPrefix+"/"):
		orgID, subPath, ok := SplitWorkspacePath(path)
		if !ok {
			return redirect(AppPrefix, ReasonMalformed, "")
		}
		if !t.Known || t.CurrentID == orgID {
			return allow(orgID)
		}
		if !t.Attempted {
			return Decision{Action: ActionResolve, OrgID: orgID}
		}
		if t.CurrentID != "" {
			return redirect(WorkspaceURL(t.CurrentID, subPath), ReasonTenantMismatch, orgID)
		}
		return redirect(QuickSetupPath, ReasonNoTenant, orgID)

	default:
		return redirect(AppPrefix, ReasonOutsideApp, "")
	}
}

// DecideEdge is the restricted, cookie-only view used by the edge middleware.
// It never asks for a resolution.
func DecideEdge(hasAuthCookie bool, path string) Decision {
	auth := AuthUnauthenticated
	if hasAuthCookie {
		auth = AuthAuthenticated
	}
	return Decide(auth, TenantView{}, path)
}

func allow(orgID string) Decision {
	return Decision{Action: ActionAllow, OrgID: orgID}
}

func redirect(location string, reason Reason, orgID string) Decision {
	return Decision{Action: ActionRedirect, Location: location, Reason: reason, OrgID: orgID}
}
