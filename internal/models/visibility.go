package models

// VisibilityScope is the authorization scope computed for one user for one
// request. It is derived fresh per query and never persisted or cached
// process-wide.
type VisibilityScope struct {
	UserID      string
	Role        UserRole
	GlobalAdmin bool
	ClassIDs    map[string]struct{}
	GradeIDs    map[string]struct{}
}

// NewVisibilityScope builds an empty scope for a user.
func NewVisibilityScope(userID string, role UserRole) VisibilityScope {
	return VisibilityScope{
		UserID:   userID,
		Role:     role,
		ClassIDs: make(map[string]struct{}),
		GradeIDs: make(map[string]struct{}),
	}
}

// HasClass reports class membership.
func (s VisibilityScope) HasClass(classID string) bool {
	_, ok := s.ClassIDs[classID]
	return ok
}

// HasGrade reports grade membership. Parents with children in several grades
// carry all of them.
func (s VisibilityScope) HasGrade(gradeID string) bool {
	_, ok := s.GradeIDs[gradeID]
	return ok
}

// ClassIDList returns class IDs as a slice for query parameters.
func (s VisibilityScope) ClassIDList() []string {
	ids := make([]string, 0, len(s.ClassIDs))
	for id := range s.ClassIDs {
		ids = append(ids, id)
	}
	return ids
}
