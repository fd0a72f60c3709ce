package domain

type StreamID string
type SessionID string
type ConnectionID string
type UserID string
type PeerID string

// Identity is the like-deduplication key: the user id when the connection
// is authenticated, otherwise the session id.
type Identity string

type Role string

const (
	RoleAnonymousViewer     Role = "anonymous-viewer"
	RoleAuthenticatedViewer Role = "authenticated-viewer"
	RoleStaff               Role = "staff"
	RoleAdmin               Role = "admin"
)

// Privileged reports whether the role may register on the privileged set.
func (r Role) Privileged() bool {
	return r == RoleStaff || r == RoleAdmin
}

type PeerRole string

const (
	PeerRoleBroadcaster PeerRole = "broadcaster"
	PeerRoleViewer      PeerRole = "viewer"
)

// PeerRoleFromUserType maps the wire userType field onto a peer role.
func PeerRoleFromUserType(userType string) (PeerRole, error) {
	switch userType {
	case "broadcaster", "admin":
		return PeerRoleBroadcaster, nil
	case "viewer":
		return PeerRoleViewer, nil
	default:
		return "", ErrMalformedMessage
	}
}

// VerifiedIdentity is the result of a successful token verification.
type VerifiedIdentity struct {
	UserID   UserID
	Username string
	Role     Role
}
