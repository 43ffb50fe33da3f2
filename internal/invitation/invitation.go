// Package invitation validates invitation links before they are accepted.
package invitation

import "net/url"

// MinTokenLength is the shortest token an invitation link can carry.
const MinTokenLength = 32

type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusAccepted Status = "accepted"
	StatusError    Status = "error"
)

const (
	MsgNoToken           = "No invitation token provided"
	MsgBadToken          = "Invalid invitation token format"
	MsgMissingParameters = "Invalid invitation link - missing required parameters"
	MsgAcceptFailed      = "Failed to accept invitation. Please try again."
)

// Details is what the link says about the invitation.
type Details struct {
	OrganizationName string `json:"organizationName"`
	InviterEmail     string `json:"inviterEmail"`
	Role             string `json:"role"`
	Email            string `json:"email"`
	IsRegistered     bool   `json:"isRegistered"`
}

// Page is the invitation page's view model.
type Page struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
	// Token is kept server side for the accept call.
	Token string `json:"-"`
}

// Parse validates the query of an invitation link. The token is checked
// first; a valid token does not excuse a missing parameter.
func Parse(q url.Values) Page {
	token := q.Get("token")
	switch {
	case token == "":
		return invalid(MsgNoToken)
	case len(token) < MinTokenLength:
		return invalid(MsgBadToken)
	}

	d := Details{
		OrganizationName: q.Get("organization"),
		InviterEmail:     q.Get("invitedby"),
		Role:             q.Get("role"),
		Email:            q.Get("email"),
		IsRegistered:     q.Get("isRegistered") == "true",
	}
	if d.Email == "" || d.OrganizationName == "" || d.Role == "" || d.InviterEmail == "" {
		return invalid(MsgMissingParameters)
	}
	return Page{Status: StatusValid, Details: &d, Token: token}
}

func invalid(msg string) Page {
	return Page{Status: StatusInvalid, Message: msg}
}
