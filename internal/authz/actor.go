package authz

// Actor is the authenticated principal performing a request.
type Actor struct {
	UserID int64
	OrgID  int64
	Email  string
}
