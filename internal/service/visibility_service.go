package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type enrollmentReader interface {
	ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error)
	ClassIDsForStudents(ctx context.Context, studentIDs []string) ([]string, error)
	GradeIDsForStudents(ctx context.Context, studentIDs []string) ([]string, error)
	StudentIDsForParent(ctx context.Context, parentID string) ([]string, error)
}

type teacherClassReader interface {
	TeacherClassIDs(ctx context.Context, teacherID string) ([]string, error)
}

// VisibilityService computes per-request authorization scopes and is the
// single place the "is this item visible to me" OR-chain lives.
type VisibilityService struct {
	enrollments enrollmentReader
	lessons     teacherClassReader
	logger      *zap.Logger
}

// NewVisibilityService constructs the service.
func NewVisibilityService(enrollments enrollmentReader, lessons teacherClassReader, logger *zap.Logger) *VisibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisibilityService{enrollments: enrollments, lessons: lessons, logger: logger}
}

// ResolveScope computes the visibility scope for one user for one request.
// Role is always an explicit parameter taken from the request identity;
// scopes are never cached across requests.
func (s *VisibilityService) ResolveScope(ctx context.Context, userID string, role models.UserRole) (models.VisibilityScope, error) {
	scope := models.NewVisibilityScope(userID, role)

	switch role {
	case models.RoleAdmin:
		scope.GlobalAdmin = true
		return scope, nil

	case models.RoleTeacher:
		classIDs, err := s.lessons.TeacherClassIDs(ctx, userID)
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher classes")
		}
		for _, id := range classIDs {
			scope.ClassIDs[id] = struct{}{}
		}
		return scope, nil

	case models.RoleStudent:
		classIDs, err := s.enrollments.ClassIDsForStudent(ctx, userID)
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student classes")
		}
		for _, id := range classIDs {
			scope.ClassIDs[id] = struct{}{}
		}
		gradeIDs, err := s.enrollments.GradeIDsForStudents(ctx, []string{userID})
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student grade")
		}
		for _, id := range gradeIDs {
			scope.GradeIDs[id] = struct{}{}
		}
		return scope, nil

	case models.RoleParent:
		children, err := s.enrollments.StudentIDsForParent(ctx, userID)
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve guardianship")
		}
		if len(children) == 0 {
			return scope, nil
		}
		classIDs, err := s.enrollments.ClassIDsForStudents(ctx, children)
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children classes")
		}
		for _, id := range classIDs {
			scope.ClassIDs[id] = struct{}{}
		}
		// Children may sit in different grades; the scope carries all of them.
		gradeIDs, err := s.enrollments.GradeIDsForStudents(ctx, children)
		if err != nil {
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children grades")
		}
		for _, id := range gradeIDs {
			scope.GradeIDs[id] = struct{}{}
		}
		return scope, nil

	default:
		return scope, appErrors.Clone(appErrors.ErrValidation, "unrecognised role")
	}
}

// IsVisible applies OR-semantics: an item is visible when any targeting
// clause matches; no clause is exclusionary.
func (s *VisibilityService) IsVisible(target models.CalendarTarget, scope models.VisibilityScope) bool {
	if scope.GlobalAdmin {
		return true
	}
	if target.IsGlobal() {
		return true
	}
	if target.ClassID != nil && scope.HasClass(*target.ClassID) {
		return true
	}
	if target.GradeID != nil && scope.HasGrade(*target.GradeID) {
		return true
	}
	for _, userID := range target.UserIDs {
		if userID == scope.UserID {
			return true
		}
	}
	return false
}
