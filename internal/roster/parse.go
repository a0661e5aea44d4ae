package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pesantren/internal/core"
)

// Column headers, matched case-insensitively.
const (
	colNIM        = "nim"
	colName       = "nama"
	colGender     = "jenis kelamin"
	colClass      = "kelas"
	colRoom       = "kamar"
	colParent     = "nama wali"
	colPhone      = "telepon wali"
	colAddress    = "alamat"
	colBirth      = "tanggal lahir"
	colEnrollment = "tanggal masuk"
)

var ErrMissingHeader = errors.New("roster header must contain NIM and Nama")

var dateLayouts = []string{core.DateLayout, "02/01/2006", "02-01-2006", "2/1/2006"}

// Entry is one parsed roster row. Line is 1-based, as shown in a
// spreadsheet.
type Entry struct {
	Line    int
	Student core.Student
}

// RowError reports a row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), " "))
		if _, dup := idx[key]; !dup && key != "" {
			idx[key] = i
		}
	}
	return idx
}

func parseGender(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "l", "laki-laki", "laki laki", "putra":
		return "L", true
	case "p", "perempuan", "putri":
		return "P", true
	}
	return "", false
}

func parseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// ParseRows maps spreadsheet rows to students. The first row is the header.
// Rows with an empty NIM are skipped silently.
func ParseRows(rows [][]string) ([]Entry, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, ErrMissingHeader
	}
	idx := headerIndex(rows[0])
	if _, ok := idx[colNIM]; !ok {
		return nil, nil, ErrMissingHeader
	}
	if _, ok := idx[colName]; !ok {
		return nil, nil, ErrMissingHeader
	}

	var (
		entries []Entry
		invalid []RowError
	)
	for i, row := range rows[1:] {
		line := i + 2
		cell := func(col string) string {
			c, ok := idx[col]
			if !ok || c >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[c])
		}

		nim := cell(colNIM)
		if nim == "" {
			continue
		}
		s := core.Student{
			NIM:            nim,
			FullName:       cell(colName),
			Class:          cell(colClass),
			RoomAssignment: cell(colRoom),
			ParentName:     cell(colParent),
			ParentPhone:    cell(colPhone),
			ParentAddress:  cell(colAddress),
		}

		gender, ok := parseGender(cell(colGender))
		if !ok {
			invalid = append(invalid, RowError{Line: line, Err: fmt.Errorf("unknown gender %q", cell(colGender))})
			continue
		}
		s.Gender = gender

		var err error
		if s.DateOfBirth, err = parseDate(cell(colBirth)); err != nil {
			invalid = append(invalid, RowError{Line: line, Err: err})
			continue
		}
		if s.EnrollmentDate, err = parseDate(cell(colEnrollment)); err != nil {
			invalid = append(invalid, RowError{Line: line, Err: err})
			continue
		}
		entries = append(entries, Entry{Line: line, Student: s})
	}
	return entries, invalid, nil
}
