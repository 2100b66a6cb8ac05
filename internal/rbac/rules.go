package rbac

type (
	Role string
	Perm string
)

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

const (
	PermAttemptCreate  Perm = "attempt:create"
	PermAttemptSave    Perm = "attempt:save"
	PermAttemptSubmit  Perm = "attempt:submit"
	PermAttemptViewOwn Perm = "attempt:view-own"
	PermAttemptGrade   Perm = "attempt:grade"
)

// DefaultRules grants students their own attempt lifecycle; teachers get every
// attempt permission, grading included. A trailing * matches a prefix.
var DefaultRules = map[Role][]Perm{
	RoleStudent: {PermAttemptCreate, PermAttemptSave, PermAttemptSubmit, PermAttemptViewOwn},
	RoleTeacher: {"attempt:*"},
	RoleAdmin:   {"*"},
}
