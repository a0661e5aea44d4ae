package http

import (
	"net/http"

	"pesantren/internal/core"
)

type studentRequest struct {
	NIM            string    `json:"nim" validate:"notblank,max=32"`
	FullName       string    `json:"full_name" validate:"notblank,max=120"`
	Gender         string    `json:"gender" validate:"omitempty,oneof=L P"`
	DateOfBirth    core.Date `json:"date_of_birth"`
	ParentName     string    `json:"parent_name" validate:"max=120"`
	ParentPhone    string    `json:"parent_phone" validate:"max=32"`
	ParentAddress  string    `json:"parent_address"`
	RoomAssignment string    `json:"room_assignment"`
	Class          string    `json:"class"`
	Status         string    `json:"status" validate:"omitempty,oneof=active inactive graduated"`
	EnrollmentDate core.Date `json:"enrollment_date"`
}

func (req studentRequest) student() core.Student {
	return core.Student{
		NIM:            req.NIM,
		FullName:       req.FullName,
		Gender:         req.Gender,
		DateOfBirth:    req.DateOfBirth,
		ParentName:     req.ParentName,
		ParentPhone:    req.ParentPhone,
		ParentAddress:  req.ParentAddress,
		RoomAssignment: req.RoomAssignment,
		Class:          req.Class,
		Status:         req.Status,
		EnrollmentDate: req.EnrollmentDate,
	}
}

type teacherRequest struct {
	NIP            string    `json:"nip" validate:"notblank,max=32"`
	FullName       string    `json:"full_name" validate:"notblank,max=120"`
	Gender         string    `json:"gender" validate:"omitempty,oneof=L P"`
	Phone          string    `json:"phone" validate:"max=32"`
	Address        string    `json:"address"`
	Qualification  string    `json:"qualification"`
	Specialization string    `json:"specialization"`
	BaseSalary     Amount    `json:"base_salary" validate:"gte=0"`
	HourlyRate     Amount    `json:"hourly_rate" validate:"gte=0"`
	Status         string    `json:"status" validate:"omitempty,oneof=active inactive"`
	HireDate       core.Date `json:"hire_date"`
}

func (req teacherRequest) teacher() core.Teacher {
	return core.Teacher{
		NIP:            req.NIP,
		FullName:       req.FullName,
		Gender:         req.Gender,
		Phone:          req.Phone,
		Address:        req.Address,
		Qualification:  req.Qualification,
		Specialization: req.Specialization,
		BaseSalary:     req.BaseSalary.Int64(),
		HourlyRate:     req.HourlyRate.Int64(),
		Status:         req.Status,
		HireDate:       req.HireDate,
	}
}

type assignmentRequest struct {
	Subject      string `json:"subject" validate:"notblank"`
	Class        string `json:"class" validate:"notblank"`
	HoursPerWeek int64  `json:"hours_per_week" validate:"gte=0,lte=60"`
	AcademicYear string `json:"academic_year" validate:"omitempty,len=9"`
}

type roleRequest struct {
	Role      core.Role `json:"role"`
	StudentID string    `json:"student_id"`
	TeacherID string    `json:"teacher_id"`
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Directory.Students(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Directory.CreateStudent(r.Context(), actor(r), req.student())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Directory.Student(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Directory.UpdateStudent(r.Context(), actor(r), r.PathValue("id"), req.student())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Directory.DeleteStudent(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Directory.Teachers(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req teacherRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Directory.CreateTeacher(r.Context(), actor(r), req.teacher())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTeacher(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Directory.Teacher(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	var req teacherRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Directory.UpdateTeacher(r.Context(), actor(r), r.PathValue("id"), req.teacher())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Directory.DeleteTeacher(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Directory.Teacher(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.deps.Directory.Assignments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.deps.Directory.CreateAssignment(r.Context(), actor(r), core.TeacherAssignment{
		TeacherID:    r.PathValue("id"),
		Subject:      req.Subject,
		Class:        req.Class,
		HoursPerWeek: req.HoursPerWeek,
		AcademicYear: req.AcademicYear,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Directory.Profiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Role.IsValid() {
		writeError(w, r, core.ValidationError{Field: "role", Message: "must be one of admin, santri, guru, komite"})
		return
	}
	p, err := s.deps.Directory.UpdateRole(r.Context(), actor(r), r.PathValue("id"), req.Role, req.StudentID, req.TeacherID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Directory.DeleteProfile(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
