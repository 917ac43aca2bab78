package domain

import "encoding/json"

// Role is the account role issued by the backend.
type Role string

// Account roles.
const (
	RoleBuyer    Role = "BUYER"
	RoleSeller   Role = "SELLER"
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

// User is the identity record returned with a token.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}

// UnmarshalJSON accepts a numeric id from the backend.
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	aux := struct {
		*plain
		ID FlexibleID `json:"id"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.ID = string(aux.ID)
	return nil
}

// CanSell reports whether the user may open seller-only flows. Seller access
// is derived from the role; no separate credential is kept for it.
func (u *User) CanSell() bool {
	return u != nil && (u.Role == RoleSeller || u.Role == RoleAdmin)
}
