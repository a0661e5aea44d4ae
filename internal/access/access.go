// Package access decides what an authenticated account may see: which
// role-specific view it lands on and which modules it may open.
package access

import (
	"time"

	"pesantren/internal/core"
)

// Session is an authenticated identity issued by the auth provider.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// ViewVariant is one of AdminView, StudentView, TeacherView, CommitteeView
// or LoggedOutView.
type ViewVariant interface {
	Name() string
	view()
}

type (
	AdminView struct {
		Profile *core.Profile
	}
	StudentView struct {
		Profile   *core.Profile
		StudentID string
	}
	TeacherView struct {
		Profile   *core.Profile
		TeacherID string
	}
	CommitteeView struct {
		Profile *core.Profile
	}
	LoggedOutView struct{}
)

func (AdminView) view()     {}
func (StudentView) view()   {}
func (TeacherView) view()   {}
func (CommitteeView) view() {}
func (LoggedOutView) view() {}

func (AdminView) Name() string     { return "admin" }
func (StudentView) Name() string   { return "santri" }
func (TeacherView) Name() string   { return "guru" }
func (CommitteeView) Name() string { return "komite" }
func (LoggedOutView) Name() string { return "logged_out" }

// SelectView routes a session and its profile to exactly one view.
//
// Without a session, or without a profile carrying a known role, the account
// is logged out. A token outliving its deleted profile therefore grants
// nothing.
func SelectView(session *Session, profile *core.Profile) ViewVariant {
	if session == nil || profile == nil {
		return LoggedOutView{}
	}
	switch profile.Role {
	case core.RoleAdmin:
		return AdminView{Profile: profile}
	case core.RoleStudent:
		return StudentView{Profile: profile, StudentID: profile.StudentID}
	case core.RoleTeacher:
		return TeacherView{Profile: profile, TeacherID: profile.TeacherID}
	case core.RoleCommittee:
		return CommitteeView{Profile: profile}
	default:
		return LoggedOutView{}
	}
}

// RoleOf returns the role a view acts with. LoggedOutView has none.
func RoleOf(v ViewVariant) (core.Role, bool) {
	switch v.(type) {
	case AdminView:
		return core.RoleAdmin, true
	case StudentView:
		return core.RoleStudent, true
	case TeacherView:
		return core.RoleTeacher, true
	case CommitteeView:
		return core.RoleCommittee, true
	default:
		return 0, false
	}
}
