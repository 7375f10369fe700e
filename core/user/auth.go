package user

// AuthContext identifies the caller of an operation. It is passed explicitly to every
// operation that needs it and never read from ambient session state.
type AuthContext struct {
	UserID        string
	InstitutionID string
	Roles         []string
	ProgramIDs    []string
}

// IsAuthenticated reports whether the context names a user of an institution.
func (a AuthContext) IsAuthenticated() bool {
	return a.UserID != "" && a.InstitutionID != ""
}

func (a AuthContext) IsAdmin() bool {
	return rolesStartWith(a.Roles, RoleAdmin)
}

func (a AuthContext) IsInstructor() bool {
	return rolesStartWith(a.Roles, RoleTeacher)
}

// CanAdministerProgram reports whether the caller may review the outcomes of programID.
// Institution admins review every program, program admins only the programs they are assigned to.
func (a AuthContext) CanAdministerProgram(programID string) bool {
	var programAdmin bool
	for _, role := range a.Roles {
		switch role {
		case RoleAdmin:
			return true
		case RoleAdminProgram:
			programAdmin = true
		}
	}
	if !programAdmin || programID == "" {
		return false
	}
	for _, id := range a.ProgramIDs {
		if id == programID {
			return true
		}
	}
	return false
}
