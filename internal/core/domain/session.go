package domain

// UserSummary is the identity slice of the signed-in user that the client
// keeps around for display. It is the only part of the session that is
// ever written to durable storage.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the client's authentication state for the current process.
//
// Invariant: IsAuthenticated == (Token != "" && User != nil) after every
// store operation. The token is memory-only: the json tag below makes an
// accidental marshal of the whole struct drop it.
type Session struct {
	Token           string       `json:"-"`
	User            *UserSummary `json:"user"`
	IsAuthenticated bool         `json:"-"`
}

// EmptySession is the logged-out state created at process start.
func EmptySession() Session {
	return Session{}
}

// AuthenticatedSession builds a fully-authenticated session. It is the only
// way a Session with IsAuthenticated == true is ever constructed.
func AuthenticatedSession(token string, user UserSummary) Session {
	u := user
	return Session{Token: token, User: &u, IsAuthenticated: true}
}

// UserPatch is a shallow partial update of the user record. Nil fields are
// left untouched.
type UserPatch struct {
	Name  *string
	Email *string
}

// Apply merges the patch into a copy of u.
func (p UserPatch) Apply(u UserSummary) UserSummary {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	return u
}
