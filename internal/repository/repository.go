// Package repository holds the data-access layer: thin request/response glue
// between the HTTP handlers and PostgreSQL. Every query is scoped by the owning
// user's id; single-row lookups return (nil, nil) when the row does not exist.
package repository

import (
	"fmt"
	"strings"

	"dinlipi/internal/models"
)

// Sealer encrypts and decrypts the free-text columns stored at rest.
// *services.EncryptionService implements it.
type Sealer interface {
	SealContent(content string) (string, error)
	DecryptEntry(entry *models.DiaryEntry) error
	SealNotes(notes *string) (*string, error)
	DecryptMoodEntry(entry *models.MoodEntry) error
}

// setBuilder accumulates "col=$n" clauses for partial updates.
type setBuilder struct {
	clauses []string
	args    []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf("%s=$%d", column, len(b.args)))
}

func (b *setBuilder) raw(clause string) {
	b.clauses = append(b.clauses, clause)
}

// arg appends a positional argument that is not a SET clause (for WHERE) and
// returns its placeholder.
func (b *setBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *setBuilder) empty() bool { return len(b.clauses) == 0 }

func (b *setBuilder) String() string { return strings.Join(b.clauses, ", ") }

// nullIfEmpty maps an empty optional string to SQL NULL.
func nullIfEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
