package service

import (
	"smad-api/common"
	"smad-api/model"
)

// CheckRole passes when required is empty or when identity holds at least one
// of the required roles. It never returns a 401: the caller is already known.
func CheckRole(identity *model.Identity, required []string) error {
	if len(required) == 0 {
		return nil
	}
	if identity != nil {
		for _, want := range required {
			for _, have := range identity.Roles {
				if have == want {
					return nil
				}
			}
		}
	}
	return common.ForbiddenOperation()
}
