package domain

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Actor roles carried in upstream session tokens
const (
	RoleAdmin    = "admin"
	RoleMember   = "member"
	RoleOperator = "operator"
)

// TokenClaims represents the JWT claims issued by the session service
type TokenClaims struct {
	jwt.RegisteredClaims

	Role      string `json:"role"`       // "admin" | "member" | "operator"
	CompanyID int64  `json:"company_id"` // 0 for platform operators
}

// Actor is the authenticated caller of a billing operation
type Actor struct {
	UserID    string
	Role      string
	CompanyID int64
}

// ActorFromClaims builds an Actor from verified token claims
func ActorFromClaims(c *TokenClaims) Actor {
	return Actor{
		UserID:    c.Subject,
		Role:      c.Role,
		CompanyID: c.CompanyID,
	}
}

// IsOperator returns true for platform operators
func (a Actor) IsOperator() bool {
	return a.Role == RoleOperator
}

// CanManageCompany returns true if the actor may purchase or verify for companyID
func (a Actor) CanManageCompany(companyID int64) bool {
	if a.IsOperator() {
		return true
	}
	return a.Role == RoleAdmin && a.CompanyID == companyID
}

// CanViewCompany returns true if the actor belongs to companyID or is an operator
func (a Actor) CanViewCompany(companyID int64) bool {
	if a.IsOperator() {
		return true
	}
	return a.CompanyID == companyID && (a.Role == RoleAdmin || a.Role == RoleMember)
}

// String is used in logs and the created_by column
func (a Actor) String() string {
	if a.UserID != "" {
		return a.UserID
	}
	return a.Role + ":" + strconv.FormatInt(a.CompanyID, 10)
}
