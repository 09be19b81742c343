package session

import "slices"

// Profile is the denormalized snapshot of the logged-in operator written
// alongside the credential. Optional fields are pointers so an unset value
// round-trips as JSON null.
type Profile struct {
	UserID             int64    `json:"userId"`
	Username           string   `json:"username"`
	FirstName          *string  `json:"firstName"`
	SecondName         *string  `json:"secondName"`
	LastName           *string  `json:"lastName"`
	SecondLastName     *string  `json:"secondLastName"`
	Roles              []string `json:"roles"`
	AccessLevel        *int     `json:"accessLevel"`
	CompanyID          *int64   `json:"companyId"`
	CompanyName        *string  `json:"companyName"`
	CompanyNit         *string  `json:"companyNit"`
	MustChangePassword bool     `json:"mustChangePassword"`
	PwdMsgToExpire     *string  `json:"pwdMsgToExpire"`
}

// normalize fills collection fields so they encode as [] rather than null.
func (p Profile) normalize() Profile {
	if p.Roles == nil {
		p.Roles = []string{}
	}
	return p
}

// HasRole reports whether the profile carries any of roles.
func (p *Profile) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// DisplayName joins the populated name parts, falling back to the username.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	name := ""
	for _, part := range []*string{p.FirstName, p.SecondName, p.LastName, p.SecondLastName} {
		if part == nil || *part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += *part
	}
	if name == "" {
		return p.Username
	}
	return name
}
