package authz

// Target views carry only the fields policies consult. Domain packages
// convert their models into these before calling Authorize, which keeps
// this package free of dependencies on the resource modules.

// UserRef is the user target view.
type UserRef struct {
	ID           int64
	DepartmentID *int64
	RoleSlugs    []string
}

func (u UserRef) hasAnyRole(slugs ...string) bool {
	for _, held := range u.RoleSlugs {
		for _, slug := range slugs {
			if held == slug {
				return true
			}
		}
	}
	return false
}

func (u UserRef) sameDepartment(p *Principal) bool {
	return p != nil && p.DepartmentID != nil && u.DepartmentID != nil &&
		*p.DepartmentID == *u.DepartmentID
}

// DepartmentRef is the department target view.
type DepartmentRef struct {
	ID        int64
	ManagerID *int64
}

// TaskRef is the task target view.
type TaskRef struct {
	ID           int64
	DepartmentID int64
	AssignedTo   int64
	AssignedBy   int64
}
