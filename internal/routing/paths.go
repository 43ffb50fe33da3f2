package routing

import (
	"net/url"
	"strings"
)

const (
	// AppPrefix is the root of every tenant workspace URL.
	AppPrefix = "/app"
	// QuickSetupPath is the tenant-creation page.
	QuickSetupPath = "/quicksetup"
	// InvitationsPath is the invitation acceptance page.
	InvitationsPath = "/invitations"
)

// publicPaths bypass tenant resolution at the edge. They still require the
// auth cookie.
var publicPaths = []string{QuickSetupPath, InvitationsPath}

// bypassPrefixes never reach the edge checks: assets, health, metrics and the
// JSON surface, which authenticates on its own.
var bypassPrefixes = []string{
	"/api/",
	"/static/",
	"/healthz",
	"/metrics",
	"/favicon.ico",
}

// Bypass reports whether path is excluded from the edge middleware.
func Bypass(path string) bool {
	if path == "/api" {
		return true
	}
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsPublic reports whether path is on the public allowlist.
func IsPublic(path string) bool {
	trimmed := trimTrailingSlash(path)
	for _, p := range publicPaths {
		if trimmed == p {
			return true
		}
	}
	return false
}

// IsAppRoot reports whether path is exactly /app or /app/.
func IsAppRoot(path string) bool {
	return path == AppPrefix || path == AppPrefix+"/"
}

// SplitWorkspacePath splits /app/{orgId}{subPath}. The sub-path is returned
// verbatim, including its leading slash, and is empty when the URL stops at
// the org segment. ok is false for paths outside /app/ or with an empty org
// segment.
func SplitWorkspacePath(path string) (orgID, subPath string, ok bool) {
	rest, found := strings.CutPrefix(path, AppPrefix+"/")
	if !found {
		return "", "", false
	}
	orgID, subPath = rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		orgID, subPath = rest[:i], rest[i:]
	}
	if orgID == "" {
		return "", "", false
	}
	return orgID, subPath, true
}

// OrgIDFromPath returns the first path segment after /app/, or "".
func OrgIDFromPath(path string) string {
	orgID, _, _ := SplitWorkspacePath(path)
	return orgID
}

// WorkspaceURL builds /app/{orgID}{subPath}.
func WorkspaceURL(orgID, subPath string) string {
	return AppPrefix + "/" + orgID + subPath
}

// BuildURLWithOrg scopes a page path to the given organization. Paths that
// already carry an org segment are returned unchanged, and so is every path
// when orgID is empty.
func BuildURLWithOrg(path, orgID string) string {
	if orgID == "" {
		return path
	}
	if _, _, ok := SplitWorkspacePath(path); ok {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return WorkspaceURL(orgID, path)
	}
	return WorkspaceURL(orgID, "/"+path)
}

// LoginURL points at the external login page with next as the return target.
func LoginURL(loginBase, next string) string {
	return strings.TrimSuffix(loginBase, "/") + "/auth/login?next=" + url.QueryEscape(next)
}

func trimTrailingSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}
