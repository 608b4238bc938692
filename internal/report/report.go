// Package report renders storage statistics into an XLSX workbook for
// administrative review, one sheet of per-user rows and one of
// per-person breakdowns.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/storage"
)

// Store is the slice of the storage engine the reporter needs.
type Store interface {
	Users() ([]string, error)
	Stats(userID string) (storage.Stats, error)
}

type Reporter struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Reporter {
	return &Reporter{store: store, log: log.WithComponent("report")}
}

const (
	usersSheet  = "Users"
	peopleSheet = "People"
)

// Build assembles the workbook in memory. A failure reading one user's
// stats is logged and that user is skipped; the report still renders.
func (r *Reporter) Build() (*excelize.File, error) {
	users, err := r.store.Users()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", usersSheet)
	if _, err := f.NewSheet(peopleSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	userHeaders := []any{"User", "Records", "Total Bytes", "Audio Bytes", "People", "Oldest", "Newest"}
	if err := f.SetSheetRow(usersSheet, "A1", &userHeaders); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	peopleHeaders := []any{"User", "Person", "Records", "Bytes"}
	if err := f.SetSheetRow(peopleSheet, "A1", &peopleHeaders); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	userRow := 2
	personRow := 2
	for _, user := range users {
		st, err := r.store.Stats(user)
		if err != nil {
			r.log.WithError(err).WithField("user_id", user).Warn("skipping user in report")
			continue
		}
		row := []any{user, st.TotalRecords, st.TotalBytes, st.AudioBytes, len(st.PerPerson), timeCell(st.Oldest), timeCell(st.Newest)}
		if err := f.SetSheetRow(usersSheet, fmt.Sprintf("A%d", userRow), &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing user row: %w", err)
		}
		userRow++

		for person, ps := range st.PerPerson {
			prow := []any{user, person, ps.Records, ps.Bytes}
			if err := f.SetSheetRow(peopleSheet, fmt.Sprintf("A%d", personRow), &prow); err != nil {
				f.Close()
				return nil, fmt.Errorf("writing person row: %w", err)
			}
			personRow++
		}
	}

	f.SetDocProps(&excelize.DocProperties{
		Title:   "Conversation storage report",
		Created: time.Now().UTC().Format(time.RFC3339),
	})
	return f, nil
}

func timeCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteFile renders the report straight to disk.
func (r *Reporter) WriteFile(path string) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	r.log.WithField("path", path).Info("storage report written")
	return nil
}
