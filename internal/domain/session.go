package domain

// Session is the authenticated identity of the current requester. It is
// created by the auth provider flow and carried in the session cookie;
// read-only everywhere else.
type Session struct {
	Username string
}
