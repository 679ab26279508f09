package rbac

import "time"

// Role groups permissions under a stable slug. The slugs admin, manager
// and staff are reserved system roles and can never be deleted.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is an atomic capability identified by a dotted slug such as
// tasks.assign. Catalog entries are created by seeding and never mutated.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}
