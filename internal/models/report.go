package models

import "time"

// Accepted report render formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

// ReportFile describes a generated report stored on disk, addressable only
// through its signed download token.
type ReportFile struct {
	JobID         string    `json:"job_id"`
	FileName      string    `json:"file_name"`
	Format        string    `json:"format"`
	RowCount      int       `json:"row_count"`
	DownloadToken string    `json:"download_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}
