// ./fieldcam-backend/internal/services/sheets_service.go
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// folderMover re-parents a file; DriveStore implements it.
type folderMover interface {
	MoveToFolder(ctx context.Context, fileID, folderID string) error
}

// SheetsLog is the Google Sheets LogSheet.
type SheetsLog struct {
	srv   *sheets.Service
	mover folderMover
	log   *zap.Logger
}

// NewSheetsLog builds the log adapter. mover may be nil when the sheet id is
// configured and never has to be created.
func NewSheetsLog(ctx context.Context, mover folderMover, logger *zap.Logger, opts ...option.ClientOption) (*SheetsLog, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %v", err)
	}
	return &SheetsLog{srv: srv, mover: mover, log: logger.Named("sheets")}, nil
}

func (s *SheetsLog) CreateSpreadsheet(ctx context.Context, title, tab string, header []string) (string, error) {
	cells := make([]*sheets.CellData, len(header))
	for i := range header {
		value := header[i]
		cells[i] = &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{StringValue: &value}}
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{Title: tab},
			Data: []*sheets.GridData{{
				RowData: []*sheets.RowData{{Values: cells}},
			}},
		}},
	}
	created, err := s.srv.Spreadsheets.Create(spreadsheet).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not create spreadsheet %q: %w", title, classify(err))
	}
	s.log.Info("created spreadsheet", zap.String("title", title), zap.String("id", created.SpreadsheetId))
	return created.SpreadsheetId, nil
}

func (s *SheetsLog) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	if s.mover == nil {
		return fmt.Errorf("spreadsheet %s cannot be moved: no drive client", fileID)
	}
	return s.mover.MoveToFolder(ctx, fileID, folderID)
}

func (s *SheetsLog) AppendRow(ctx context.Context, spreadsheetID, cellRange string, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	_, err := s.srv.Spreadsheets.Values.
		Append(spreadsheetID, cellRange, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("could not append row: %w", classify(err))
	}
	return nil
}
