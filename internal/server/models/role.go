package models

import (
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/common"
)

// Role tells administrators apart from residents.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "morador"
)

var ErrInvalidRole = common.Validation("Tipo de usuário inválido.")

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleResident:
		return RoleResident, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }
