package audit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the audit service.
type Config struct {
	// DataRetentionDays is how long terminal reservations are kept
	// before the post-export cleanup removes them. Default: 180 days.
	DataRetentionDays int

	// ExportOnStart runs an export immediately on service start.
	ExportOnStart bool

	// ExportPath is a directory for keeping a local copy of each
	// report. Empty disables the local copy.
	ExportPath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataRetentionDays: 180,
	}
}

// DataCleaner removes reservations past the retention window.
type DataCleaner interface {
	DeleteOldReservations(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Service runs monthly exports followed by retention cleanup.
type Service struct {
	config   *Config
	exporter TableExporter
	writer   func() ExcelWriter
	notifier Notifier
	cleaner  DataCleaner
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates the audit service. writerFactory builds a fresh
// workbook per export.
func NewService(
	config *Config,
	exporter TableExporter,
	writerFactory func() ExcelWriter,
	notifier Notifier,
	cleaner DataCleaner,
	logger zerolog.Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DataRetentionDays <= 0 {
		config.DataRetentionDays = 180
	}

	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		notifier: notifier,
		cleaner:  cleaner,
		logger:   logger.With().Str("component", "audit").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly schedule.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunExportAndCleanup()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.DataRetentionDays).
		Msg("audit service started")
}

// Stop gracefully stops the scheduler.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("next_run", nextRun).Msg("next audit scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExportAndCleanup()

			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("next audit scheduled")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// RunExportAndCleanup performs the export and cleanup immediately.
func (s *Service) RunExportAndCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.exportData(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}

	if err := s.cleanupOldData(ctx); err != nil {
		s.logger.Error().Err(err).Msg("retention cleanup failed")
	}
}

func (s *Service) exportData(ctx context.Context) error {
	if s.exporter == nil || s.writer == nil {
		return fmt.Errorf("exporter or writer not configured")
	}

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		s.logger.Info().Msg("no tables to export")
		return nil
	}

	excel := s.writer()
	if excel == nil {
		return fmt.Errorf("failed to create excel writer")
	}

	for _, tableName := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, tableName)
		if err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to read table")
			continue
		}

		if err := excel.AddSheet(tableName); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to add sheet")
			continue
		}
		if err := excel.WriteHeader(columns); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("failed to write header")
			continue
		}

		for _, row := range data {
			rowData := make([]interface{}, len(columns))
			for i, col := range columns {
				rowData[i] = row[col]
			}
			if err := excel.WriteRow(rowData); err != nil {
				s.logger.Error().Err(err).Str("table", tableName).Msg("failed to write row")
			}
		}

		s.logger.Debug().Str("table", tableName).Int("rows", len(data)).Msg("table exported")
	}

	filename := GenerateFilenameForPreviousMonth()

	if s.config.ExportPath != "" {
		if err := os.MkdirAll(s.config.ExportPath, 0o755); err != nil {
			s.logger.Error().Err(err).Msg("failed to create export directory")
		} else if err := excel.SaveToFile(filepath.Join(s.config.ExportPath, filename)); err != nil {
			s.logger.Error().Err(err).Msg("failed to save local report copy")
		}
	}

	if s.notifier != nil {
		var buf bytes.Buffer
		if err := excel.Save(&buf); err != nil {
			return fmt.Errorf("save excel: %w", err)
		}

		caption := fmt.Sprintf("Monthly reservation report %s", filename)
		if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
			return fmt.Errorf("send document: %w", err)
		}
		s.logger.Info().Str("filename", filename).Msg("audit report sent")
	}

	return nil
}

func (s *Service) cleanupOldData(ctx context.Context) error {
	if s.cleaner == nil {
		return nil
	}

	retention := time.Duration(s.config.DataRetentionDays) * 24 * time.Hour
	deleted, err := s.cleaner.DeleteOldReservations(ctx, retention)
	if err != nil {
		return fmt.Errorf("delete old reservations: %w", err)
	}

	s.logger.Info().Int64("deleted", deleted).
		Int("retention_days", s.config.DataRetentionDays).
		Msg("old reservations cleaned up")

	return nil
}

// ExportNow triggers an immediate export, for manual runs.
func (s *Service) ExportNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	return s.exportData(ctx)
}

// CleanupNow triggers an immediate cleanup.
func (s *Service) CleanupNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return s.cleanupOldData(ctx)
}
