// Package google mirrors the active reservation schedule into a Google
// Sheet shared with building management.
package google

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aptdesk/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService pushes reservation rows to a spreadsheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        zerolog.Logger

	// rowCache maps reservation id to the sheet row it occupies, so
	// single-row updates avoid a full resync.
	cacheMu  sync.Mutex
	rowCache map[int64]int
}

// NewSheetsService authenticates with a service account credentials file.
func NewSheetsService(
	ctx context.Context,
	credentialsFile, spreadsheetID, sheetName string,
	logger zerolog.Logger,
) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	if sheetName == "" {
		sheetName = "Reservations"
	}

	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With().Str("component", "sheets").Logger(),
		rowCache:      make(map[int64]int),
	}, nil
}

var sheetHeader = []interface{}{
	"ID", "Unit", "Resource", "Start", "End", "Status", "Description", "Created",
}

// SyncReservations rewrites the sheet with the current active schedule.
// Terminal reservations are dropped from the sheet.
func (s *SheetsService) SyncReservations(ctx context.Context, reservations []models.Reservation) error {
	active := s.filterActiveReservations(reservations)

	values := make([][]interface{}, 0, len(active)+1)
	values = append(values, sheetHeader)
	for i := range active {
		values = append(values, reservationRowValues(&active[i]))
	}

	// Clear first so rows past the new range do not linger.
	clearRange := fmt.Sprintf("%s!A:H", s.sheetName)
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange,
		&sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1", s.sheetName)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange,
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.ClearCache()
	s.cacheMu.Lock()
	for i := range active {
		// Row 1 is the header.
		s.rowCache[active[i].ID] = i + 2
	}
	s.cacheMu.Unlock()

	s.logger.Info().Int("rows", len(active)).Msg("schedule synced to sheet")
	return nil
}

// UpdateReservation rewrites a single reservation's row when its sheet
// position is known, falling back to nothing so the next full sync
// catches it.
func (s *SheetsService) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	row, ok := s.getCachedRow(r.ID)
	if !ok {
		return nil
	}

	writeRange := fmt.Sprintf("%s!A%d", s.sheetName, row)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange,
		&sheets.ValueRange{Values: [][]interface{}{reservationRowValues(r)}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}

	if r.IsTerminal() {
		s.deleteCacheRow(r.ID)
	}
	return nil
}

func (s *SheetsService) filterActiveReservations(reservations []models.Reservation) []models.Reservation {
	active := make([]models.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	return active
}

func reservationRowValues(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.UnitID,
		string(r.ResourceType),
		r.StartTime.Format("2006-01-02 15:04"),
		r.EndTime.Format("2006-01-02 15:04"),
		string(r.Status),
		r.Description,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache drops every cached row position.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

// StartPeriodicSync resyncs the sheet on an interval until the context
// is cancelled. lister supplies the current reservations.
func (s *SheetsService) StartPeriodicSync(
	ctx context.Context,
	interval time.Duration,
	lister func(context.Context) ([]models.Reservation, error),
) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reservations, err := lister(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to list reservations for sheet sync")
				continue
			}
			if err := s.SyncReservations(ctx, reservations); err != nil {
				s.logger.Error().Err(err).Msg("sheet sync failed")
			}
		}
	}
}
