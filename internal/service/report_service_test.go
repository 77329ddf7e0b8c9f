package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyahq/fees-api/internal/models"
	appErrors "github.com/vidyahq/fees-api/pkg/errors"
	"github.com/vidyahq/fees-api/pkg/storage"
)

type defaulterListerStub struct {
	fees []models.MonthlyFeeDetail
	err  error
}

func (s defaulterListerStub) ListDefaulters(ctx context.Context, asOf time.Time) ([]models.MonthlyFeeDetail, error) {
	return s.fees, s.err
}

type paymentReaderStub struct {
	payment *models.Payment
	err     error
}

func (s paymentReaderStub) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

type feeDetailReaderStub struct {
	detail *models.MonthlyFeeDetail
	err    error
}

func (s feeDetailReaderStub) FindDetailByID(ctx context.Context, id string) (*models.MonthlyFeeDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func overdueFee() models.MonthlyFeeDetail {
	return models.MonthlyFeeDetail{
		MonthlyFee: models.MonthlyFee{
			ID:            "f1",
			StudentID:     "s1",
			Month:         1,
			Year:          2024,
			TotalFee:      100000,
			AmountPaid:    25000,
			AmountPending: 75000,
			DueDate:       time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			Status:        models.FeeStatusPartial,
		},
		AdmissionNumber:  "ADM-001",
		StudentFirstName: "Asha",
		StudentLastName:  "Kumar",
		ParentName:       "Ravi",
		ParentPhone:      "+919800000001",
	}
}

func newTestReportService(t *testing.T, fees defaulterListerStub, details feeDetailReaderStub, payments paymentReaderStub) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	return NewReportService(fees, details, payments, store, signer, nil, nil)
}

func TestDefaultersReportCSVRoundTrip(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{fees: []models.MonthlyFeeDetail{overdueFee()}}, feeDetailReaderStub{}, paymentReaderStub{})

	asOf := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	report, err := svc.Defaulters(context.Background(), asOf, models.ReportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RowCount)
	assert.Equal(t, models.ReportFormatCSV, report.Format)
	assert.True(t, strings.HasSuffix(report.FileName, ".csv"))
	assert.NotEmpty(t, report.DownloadToken)

	reader, relPath, err := svc.Open(report.DownloadToken)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, report.FileName, relPath)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	csv := string(body)
	assert.Contains(t, csv, "Admission No")
	assert.Contains(t, csv, "ADM-001")
	assert.Contains(t, csv, "Asha Kumar")
	assert.Contains(t, csv, "750.00")
}

func TestDefaultersReportPDF(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{fees: []models.MonthlyFeeDetail{overdueFee()}}, feeDetailReaderStub{}, paymentReaderStub{})

	report, err := svc.Defaulters(context.Background(), time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), models.ReportFormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(report.FileName, ".pdf"))

	reader, _, err := svc.Open(report.DownloadToken)
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestDefaultersReportUnsupportedFormat(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{}, feeDetailReaderStub{}, paymentReaderStub{})

	_, err := svc.Defaulters(context.Background(), time.Time{}, "xlsx")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOpenRejectsForgedToken(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{}, feeDetailReaderStub{}, paymentReaderStub{})

	_, _, err := svc.Open("not-a-real-token")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestReceiptPDF(t *testing.T) {
	txn := "UPI-12345"
	payment := &models.Payment{
		ID:            "pay-1",
		MonthlyFeeID:  "f1",
		Amount:        25000,
		PaymentMode:   "upi",
		PaymentDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TransactionID: &txn,
		ReceiptNumber: "RCP-20240115-00042",
	}
	detail := overdueFee()
	svc := newTestReportService(t, defaulterListerStub{}, feeDetailReaderStub{detail: &detail}, paymentReaderStub{payment: payment})

	body, receiptNumber, err := svc.ReceiptPDF(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "RCP-20240115-00042", receiptNumber)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestReceiptPDFPaymentNotFound(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{}, feeDetailReaderStub{}, paymentReaderStub{err: sql.ErrNoRows})

	_, _, err := svc.ReceiptPDF(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReportCleanup(t *testing.T) {
	svc := newTestReportService(t, defaulterListerStub{fees: []models.MonthlyFeeDetail{overdueFee()}}, feeDetailReaderStub{}, paymentReaderStub{})

	_, err := svc.Defaulters(context.Background(), time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), models.ReportFormatCSV)
	require.NoError(t, err)

	// Nothing is older than an hour yet.
	deleted, err := svc.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	// A zero TTL treats every stored file as expired.
	deleted, err = svc.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
