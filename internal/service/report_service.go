package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/internal/models"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
	"github.com/vidyahq/fees-api/pkg/export"
)

type defaulterLister interface {
	ListDefaulters(ctx context.Context, asOf time.Time) ([]models.MonthlyFeeDetail, error)
}

type paymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type feeDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.MonthlyFeeDetail, error)
}

type reportStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ReportService renders defaulter reports and payment receipts. Report files
// live on local disk and are handed out only through signed download tokens.
type ReportService struct {
	fees     defaulterLister
	details  feeDetailReader
	payments paymentReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	receipts *export.ReceiptRenderer
	store    reportStore
	signer   urlSigner
	now      func() time.Time
	logger   *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(fees defaulterLister, details feeDetailReader, payments paymentReader, store reportStore, signer urlSigner, now func() time.Time, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ReportService{
		fees:     fees,
		details:  details,
		payments: payments,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		receipts: export.NewReceiptRenderer(),
		store:    store,
		signer:   signer,
		now:      now,
		logger:   logger,
	}
}

var defaulterHeaders = []string{
	"Admission No", "Student", "Parent", "Phone", "Month", "Due Date", "Total", "Paid", "Pending", "Status",
}

// Defaulters renders the list of fees overdue as of the given date and stores
// the file for signed download.
func (s *ReportService) Defaulters(ctx context.Context, asOf time.Time, format string) (*models.ReportFile, error) {
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
	if asOf.IsZero() {
		asOf = dateOf(s.now())
	}

	defaulters, err := s.fees.ListDefaulters(ctx, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defaulters")
	}

	dataset := export.Dataset{Headers: defaulterHeaders, Rows: make([]map[string]string, 0, len(defaulters))}
	for _, fee := range defaulters {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Admission No": fee.AdmissionNumber,
			"Student":      fee.StudentFirstName + " " + fee.StudentLastName,
			"Parent":       fee.ParentName,
			"Phone":        fee.ParentPhone,
			"Month":        fmt.Sprintf("%s %d", time.Month(fee.Month), fee.Year),
			"Due Date":     fee.DueDate.Format("2006-01-02"),
			"Total":        rupees(fee.TotalFee),
			"Paid":         rupees(fee.AmountPaid),
			"Pending":      rupees(fee.AmountPending),
			"Status":       fee.Status,
		})
	}

	var payload []byte
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Fee Defaulters as of %s", asOf.Format("02 Jan 2006")))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	jobID := uuid.NewString()
	fileName := fmt.Sprintf("defaulters/%s-%s.%s", asOf.Format("20060102"), jobID, format)
	if _, err := s.store.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(jobID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.logger.Sugar().Infow("defaulters report generated",
		"job_id", jobID, "format", format, "rows", len(defaulters), "as_of", asOf.Format("2006-01-02"))

	return &models.ReportFile{
		JobID:         jobID,
		FileName:      fileName,
		Format:        format,
		RowCount:      len(defaulters),
		DownloadToken: token,
		ExpiresAt:     expiresAt,
	}, nil
}

// Open validates a signed token and returns the report file stream. The
// caller owns the returned reader.
func (s *ReportService) Open(token string) (io.ReadCloser, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	return file, relPath, nil
}

// ReceiptPDF renders the printable receipt for one payment.
func (s *ReportService) ReceiptPDF(ctx context.Context, paymentID string) ([]byte, string, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if isNoRows(err) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	fee, err := s.details.FindDetailByID(ctx, payment.MonthlyFeeID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee for receipt")
	}

	fields := []export.ReceiptField{
		{Label: "Date", Value: payment.PaymentDate.Format("02 Jan 2006")},
		{Label: "Student", Value: fee.StudentFirstName + " " + fee.StudentLastName},
		{Label: "Admission No", Value: fee.AdmissionNumber},
		{Label: "Fee Period", Value: fmt.Sprintf("%s %d", time.Month(fee.Month), fee.Year)},
		{Label: "Payment Mode", Value: payment.PaymentMode},
	}
	if payment.TransactionID != nil && *payment.TransactionID != "" {
		fields = append(fields, export.ReceiptField{Label: "Transaction ID", Value: *payment.TransactionID})
	}
	fields = append(fields,
		export.ReceiptField{Label: "Total Fee", Value: "Rs. " + rupees(fee.TotalFee)},
		export.ReceiptField{Label: "Balance Due", Value: "Rs. " + rupees(fee.AmountPending)},
	)

	doc := export.ReceiptDocument{
		Title:         "Fee Payment Receipt",
		ReceiptNumber: payment.ReceiptNumber,
		Fields:        fields,
		AmountValue:   "Rs. " + rupees(payment.Amount),
		FooterNote:    "This is a computer generated receipt.",
	}
	payload, err := s.receipts.Render(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return payload, payment.ReceiptNumber, nil
}

// Cleanup removes expired report files.
func (s *ReportService) Cleanup(ttl time.Duration) (int, error) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean up reports")
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired reports removed", "count", len(deleted))
	}
	return len(deleted), nil
}
