package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// Directory manages students, teachers, their assignments and user profiles.
type Directory struct {
	store      storage.Store
	activities *Activities
	logger     *slog.Logger
}

func NewDirectory(store storage.Store, activities *Activities, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: store, activities: activities, logger: logger.With("component", "directory")}
}

func (d *Directory) record(ctx context.Context, actor, activity, description string, meta map[string]any) {
	if d.activities != nil {
		d.activities.Record(ctx, actor, activity, description, meta)
	}
}

// unique fails with core.ErrConflict when another record already has value
// in field.
func (d *Directory) unique(ctx context.Context, collection, field, value, selfID string) error {
	where := []storage.Predicate{storage.Eq(field, value)}
	if selfID != "" {
		where = append(where, storage.Ne("id", selfID))
	}
	n, err := d.store.Count(ctx, collection, where...)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if n > 0 {
		return fmt.Errorf("%s %q is already registered: %w", strings.ToUpper(field), value, core.ErrConflict)
	}
	return nil
}

func (d *Directory) write(ctx context.Context, collection, id string, v any) (string, error) {
	rec, err := storage.Encode(v)
	if err != nil {
		return "", err
	}
	if id == "" {
		return d.store.Insert(ctx, collection, storage.Without(rec, "id"))
	}
	return id, d.store.Update(ctx, collection, id, storage.Without(rec, "id", "created_at"))
}

// CreateStudent registers a student and opens their savings account.
func (d *Directory) CreateStudent(ctx context.Context, actor string, s core.Student) (core.Student, error) {
	now := core.Now()
	s.ID = ""
	s.NIM = strings.TrimSpace(s.NIM)
	s.FullName = strings.TrimSpace(s.FullName)
	if s.Status == "" {
		s.Status = core.StatusActive
	}
	if s.EnrollmentDate.IsZero() {
		s.EnrollmentDate = core.Today()
	}
	s.CreatedAt, s.UpdatedAt = now, now
	if err := s.Validate(); err != nil {
		return core.Student{}, err
	}
	if err := d.unique(ctx, storage.Students, "nim", s.NIM, ""); err != nil {
		return core.Student{}, err
	}

	id, err := d.write(ctx, storage.Students, "", s)
	if err != nil {
		return core.Student{}, fmt.Errorf("create student: %w", err)
	}
	s.ID = id

	if _, err := ensureSavingsAccount(ctx, d.store, id); err != nil {
		return core.Student{}, err
	}

	d.record(ctx, actor, "student_created", s.FullName, map[string]any{"student_id": id, "nim": s.NIM})
	return s, nil
}

// UpdateStudent replaces the editable fields of a student.
func (d *Directory) UpdateStudent(ctx context.Context, actor, id string, s core.Student) (core.Student, error) {
	existing, err := d.Student(ctx, id)
	if err != nil {
		return core.Student{}, err
	}
	s.ID = id
	s.NIM = strings.TrimSpace(s.NIM)
	s.FullName = strings.TrimSpace(s.FullName)
	if s.Status == "" {
		s.Status = existing.Status
	}
	if s.EnrollmentDate.IsZero() {
		s.EnrollmentDate = existing.EnrollmentDate
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = core.Now()
	if err := s.Validate(); err != nil {
		return core.Student{}, err
	}
	if err := d.unique(ctx, storage.Students, "nim", s.NIM, id); err != nil {
		return core.Student{}, err
	}

	if _, err := d.write(ctx, storage.Students, id, s); err != nil {
		return core.Student{}, fmt.Errorf("update student: %w", err)
	}
	d.record(ctx, actor, "student_updated", s.FullName, map[string]any{"student_id": id})
	return s, nil
}

// DeleteStudent removes a student together with their savings account.
func (d *Directory) DeleteStudent(ctx context.Context, actor, id string) error {
	if err := d.store.Delete(ctx, storage.Students, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	accounts, err := d.store.Find(ctx, storage.SavingsAccounts, storage.Query{
		Where: []storage.Predicate{storage.Eq("student_id", id)},
	})
	if err != nil {
		return fmt.Errorf("load savings account: %w", err)
	}
	for _, acc := range accounts {
		if err := d.store.Delete(ctx, storage.SavingsAccounts, stringField(acc, "id")); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete savings account: %w", err)
		}
	}
	d.record(ctx, actor, "student_deleted", id, map[string]any{"student_id": id})
	return nil
}

func (d *Directory) Student(ctx context.Context, id string) (core.Student, error) {
	return getAs[core.Student](ctx, d.store, storage.Students, id)
}

// Students lists students, optionally restricted to one status.
func (d *Directory) Students(ctx context.Context, status string) ([]table.Record, error) {
	return d.list(ctx, storage.Students, "status", status)
}

func (d *Directory) list(ctx context.Context, collection, field, value string) ([]table.Record, error) {
	var q storage.Query
	if value != "" {
		q.Where = []storage.Predicate{storage.Eq(field, value)}
	}
	recs, err := d.store.Find(ctx, collection, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return recs, nil
}

// CreateTeacher registers a teacher.
func (d *Directory) CreateTeacher(ctx context.Context, actor string, t core.Teacher) (core.Teacher, error) {
	now := core.Now()
	t.ID = ""
	t.NIP = strings.TrimSpace(t.NIP)
	t.FullName = strings.TrimSpace(t.FullName)
	if t.Status == "" {
		t.Status = core.StatusActive
	}
	if t.HireDate.IsZero() {
		t.HireDate = core.Today()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	if err := t.Validate(); err != nil {
		return core.Teacher{}, err
	}
	if err := d.unique(ctx, storage.Teachers, "nip", t.NIP, ""); err != nil {
		return core.Teacher{}, err
	}

	id, err := d.write(ctx, storage.Teachers, "", t)
	if err != nil {
		return core.Teacher{}, fmt.Errorf("create teacher: %w", err)
	}
	t.ID = id
	d.record(ctx, actor, "teacher_created", t.FullName, map[string]any{"teacher_id": id, "nip": t.NIP})
	return t, nil
}

// UpdateTeacher replaces the editable fields of a teacher.
func (d *Directory) UpdateTeacher(ctx context.Context, actor, id string, t core.Teacher) (core.Teacher, error) {
	existing, err := d.Teacher(ctx, id)
	if err != nil {
		return core.Teacher{}, err
	}
	t.ID = id
	t.NIP = strings.TrimSpace(t.NIP)
	t.FullName = strings.TrimSpace(t.FullName)
	if t.Status == "" {
		t.Status = existing.Status
	}
	if t.HireDate.IsZero() {
		t.HireDate = existing.HireDate
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = core.Now()
	if err := t.Validate(); err != nil {
		return core.Teacher{}, err
	}
	if err := d.unique(ctx, storage.Teachers, "nip", t.NIP, id); err != nil {
		return core.Teacher{}, err
	}

	if _, err := d.write(ctx, storage.Teachers, id, t); err != nil {
		return core.Teacher{}, fmt.Errorf("update teacher: %w", err)
	}
	d.record(ctx, actor, "teacher_updated", t.FullName, map[string]any{"teacher_id": id})
	return t, nil
}

func (d *Directory) DeleteTeacher(ctx context.Context, actor, id string) error {
	if err := d.store.Delete(ctx, storage.Teachers, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	d.record(ctx, actor, "teacher_deleted", id, map[string]any{"teacher_id": id})
	return nil
}

func (d *Directory) Teacher(ctx context.Context, id string) (core.Teacher, error) {
	return getAs[core.Teacher](ctx, d.store, storage.Teachers, id)
}

// Teachers lists teachers, optionally restricted to one status.
func (d *Directory) Teachers(ctx context.Context, status string) ([]table.Record, error) {
	return d.list(ctx, storage.Teachers, "status", status)
}

// CreateAssignment assigns a teacher to a subject and class.
func (d *Directory) CreateAssignment(ctx context.Context, actor string, a core.TeacherAssignment) (core.TeacherAssignment, error) {
	a.ID = ""
	a.Subject = strings.TrimSpace(a.Subject)
	a.CreatedAt = core.Now()
	if a.AcademicYear == "" {
		a.AcademicYear = academicYear(time.Now())
	}
	if err := a.Validate(); err != nil {
		return core.TeacherAssignment{}, err
	}
	if err := requireRecord(ctx, d.store, storage.Teachers, a.TeacherID, "teacher_id"); err != nil {
		return core.TeacherAssignment{}, err
	}

	id, err := d.write(ctx, storage.TeacherAssignments, "", a)
	if err != nil {
		return core.TeacherAssignment{}, fmt.Errorf("create assignment: %w", err)
	}
	a.ID = id
	d.record(ctx, actor, "assignment_created", a.Subject+" "+a.Class, map[string]any{"teacher_id": a.TeacherID})
	return a, nil
}

// Assignments lists the assignments of one teacher.
func (d *Directory) Assignments(ctx context.Context, teacherID string) ([]table.Record, error) {
	return d.list(ctx, storage.TeacherAssignments, "teacher_id", teacherID)
}

// academicYear names the school year containing t, which starts in July.
func academicYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.July {
		start--
	}
	return fmt.Sprintf("%d/%d", start, start+1)
}

// Profiles lists every user profile.
func (d *Directory) Profiles(ctx context.Context) ([]table.Record, error) {
	return d.list(ctx, storage.Profiles, "", "")
}

// UpdateRole changes a profile's role. Only the link fitting the role is
// kept: santri keep studentID, guru keep teacherID, other roles clear both.
func (d *Directory) UpdateRole(ctx context.Context, actor, profileID string, role core.Role, studentID, teacherID string) (core.Profile, error) {
	p, err := getAs[core.Profile](ctx, d.store, storage.Profiles, profileID)
	if err != nil {
		return core.Profile{}, err
	}
	if !role.IsValid() {
		return core.Profile{}, core.ValidationErrors{{Field: "role", Message: "is not a valid role"}}
	}

	p.Role = role
	p.StudentID, p.TeacherID = "", ""
	switch role {
	case core.RoleStudent:
		if studentID != "" {
			if err := requireRecord(ctx, d.store, storage.Students, studentID, "student_id"); err != nil {
				return core.Profile{}, err
			}
		}
		p.StudentID = studentID
	case core.RoleTeacher:
		if teacherID != "" {
			if err := requireRecord(ctx, d.store, storage.Teachers, teacherID, "teacher_id"); err != nil {
				return core.Profile{}, err
			}
		}
		p.TeacherID = teacherID
	}
	p.UpdatedAt = core.Now()

	if err := d.store.Update(ctx, storage.Profiles, profileID, table.Record{
		"role":       role.String(),
		"student_id": nullable(p.StudentID),
		"teacher_id": nullable(p.TeacherID),
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
	}); err != nil {
		return core.Profile{}, fmt.Errorf("update role: %w", err)
	}

	d.logger.InfoContext(ctx, "Role updated", "user_id", profileID, "role", role.String(), "actor", actor)
	d.record(ctx, actor, "role_updated", p.Email+" -> "+role.String(), map[string]any{"profile_id": profileID})
	return p, nil
}

// DeleteProfile removes a profile and its credentials. An account cannot
// delete its own profile.
func (d *Directory) DeleteProfile(ctx context.Context, actor, profileID string) error {
	if actor == profileID {
		return fmt.Errorf("delete own profile: %w", core.ErrForbidden)
	}
	if err := d.store.Delete(ctx, storage.Profiles, profileID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := d.store.Delete(ctx, storage.Users, profileID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete credentials: %w", err)
	}
	d.record(ctx, actor, "profile_deleted", profileID, map[string]any{"profile_id": profileID})
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
