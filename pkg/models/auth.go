package models

const (
	RoleAdmin = "admin"
	RoleView  = "view"
)

type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the minted bearer token on success. Token is a
// pointer so a failed login serializes as token:null, matching what viewing
// clients expect.
type LoginResponse struct {
	Role  string  `json:"role"`
	Token *string `json:"token"`
}
