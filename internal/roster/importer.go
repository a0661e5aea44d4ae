package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pesantren/internal/core"
)

type StudentCreator interface {
	CreateStudent(ctx context.Context, actor string, s core.Student) (core.Student, error)
}

// Summary counts the outcome of an import.
type Summary struct {
	Imported   int
	Duplicates []string
	Invalid    []RowError
}

func (s Summary) String() string {
	return fmt.Sprintf("imported: %d, duplicates: %d, invalid: %d", s.Imported, len(s.Duplicates), len(s.Invalid))
}

type Importer struct {
	students StudentCreator
	logger   *slog.Logger
}

func NewImporter(students StudentCreator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{students: students, logger: logger.With("component", "roster")}
}

// Import creates a student for every valid row. Existing NIMs and rows
// failing validation are counted, not fatal; any other error stops the
// import.
func (im *Importer) Import(ctx context.Context, actor string, rows [][]string) (Summary, error) {
	entries, invalid, err := ParseRows(rows)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Invalid: invalid}

	for _, e := range entries {
		_, err := im.students.CreateStudent(ctx, actor, e.Student)
		var verrs core.ValidationErrors
		switch {
		case err == nil:
			sum.Imported++
		case errors.Is(err, core.ErrConflict):
			sum.Duplicates = append(sum.Duplicates, e.Student.NIM)
		case errors.As(err, &verrs):
			sum.Invalid = append(sum.Invalid, RowError{Line: e.Line, Err: err})
		default:
			return sum, fmt.Errorf("import row %d: %w", e.Line, err)
		}
	}

	im.logger.InfoContext(ctx, "Roster imported",
		"imported", sum.Imported,
		"duplicates", len(sum.Duplicates),
		"invalid", len(sum.Invalid))
	return sum, nil
}

// ImportFile reads an .xls roster and imports it.
func (im *Importer) ImportFile(ctx context.Context, actor, path string) (Summary, error) {
	rows, err := ReadXLS(path)
	if err != nil {
		return Summary{}, err
	}
	return im.Import(ctx, actor, rows)
}
