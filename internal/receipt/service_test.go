package receipt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/lease"
	"gestion-locative/internal/models"
	"gestion-locative/internal/payment"
	"gestion-locative/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var today = testutil.Date(2024, 6, 15)

type memStore struct {
	objects map[string][]byte
	fail    bool
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	if m.fail {
		return errors.New("stockage indisponible")
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("absent")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type failingRenderer struct{}

func (failingRenderer) Render(Snapshot) ([]byte, error) { return nil, errors.New("police manquante") }

func newService(t *testing.T, r Renderer, st Store) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop(), r, st).WithClock(func() time.Time { return today })
	return svc, db
}

func TestNextNumber(t *testing.T) {
	svc, db := newService(t, nil, nil)
	march := testutil.Date(2024, 3, 1)

	n, err := NextNumber(db, march)
	require.NoError(t, err)
	assert.Equal(t, "Q2024030001", n)

	for i := 0; i < 2; i++ {
		l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
		_, err := svc.Generate(context.Background(), l.ID, march, nil, false)
		require.NoError(t, err)
	}
	n, err = NextNumber(db, march)
	require.NoError(t, err)
	assert.Equal(t, "Q2024030003", n)

	// numbering restarts each month
	n, err = NextNumber(db, testutil.Date(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, "Q2024040001", n)
}

func TestNextNumberPastFourDigits(t *testing.T) {
	_, db := newService(t, nil, nil)
	feb := testutil.Date(2024, 2, 1)
	for _, number := range []string{"Q2024029999", "Q20240210000"} {
		l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
		require.NoError(t, db.Create(&models.Receipt{
			LeaseID: l.ID, Month: feb, Number: number,
			Rent: testutil.Money("500"), Charges: testutil.Money("0"), Total: testutil.Money("500"),
		}).Error)
	}

	n, err := NextNumber(db, feb)
	require.NoError(t, err)
	assert.Equal(t, "Q20240210001", n)
}

func TestGenerateReusesExistingUnlessForced(t *testing.T) {
	svc, db := newService(t, nil, nil)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "450", "50", 5)
	march := testutil.Date(2024, 3, 12)

	first, err := svc.Generate(context.Background(), l.ID, march, nil, false)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2024, 3, 1), first.Month)
	assert.Equal(t, "500.00", first.Total.StringFixed(2))

	require.NoError(t, db.Model(&models.Lease{}).Where("id = ?", l.ID).Update("monthly_rent", testutil.Money("470")).Error)

	again, err := svc.Generate(context.Background(), l.ID, march, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "500.00", again.Total.StringFixed(2))

	// forced without payment keeps the amounts already issued
	forced, err := svc.Generate(context.Background(), l.ID, march, nil, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, forced.ID)
	assert.Equal(t, first.Number, forced.Number)
	assert.Equal(t, "500.00", forced.Total.StringFixed(2))
}

func TestGenerateUsesPaymentAmounts(t *testing.T) {
	svc, db := newService(t, nil, nil)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "450", "50", 5)
	pays := payment.NewService(db, zap.NewNop()).WithClock(func() time.Time { return today })
	res, err := pays.Record(payment.Input{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 3, 1),
		Rent:        testutil.Money("400"),
		Charges:     testutil.Money("50"),
		PaymentDate: testutil.Date(2024, 3, 4),
		Mode:        models.ModeTransfer,
	})
	require.NoError(t, err)

	r, err := svc.GenerateFromPayment(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "450.00", r.Total.StringFixed(2))
	require.NotNil(t, r.PaymentID)
	assert.Equal(t, res.Payment.ID, *r.PaymentID)

	var p models.Payment
	require.NoError(t, db.First(&p, res.Payment.ID).Error)
	require.NotNil(t, p.ReceiptID)
	assert.Equal(t, r.ID, *p.ReceiptID)

	_, err = svc.Generate(context.Background(), l.ID, testutil.Date(2024, 4, 1), &res.Payment.ID, false)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeInvalidInput, appErr.Code)
}

func TestPublishFailureKeepsReceipt(t *testing.T) {
	st := newMemStore()
	svc, db := newService(t, failingRenderer{}, st)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)

	r, err := svc.Generate(context.Background(), l.ID, testutil.Date(2024, 3, 1), nil, false)
	require.NoError(t, err)
	assert.Empty(t, r.DocumentKey)
	assert.Empty(t, st.objects)

	var count int64
	require.NoError(t, db.Model(&models.Receipt{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, _, err = svc.Document(context.Background(), r.ID)
	require.Error(t, err)
}

func TestPublishStoresPDF(t *testing.T) {
	st := newMemStore()
	svc, db := newService(t, PDFRenderer{}, st)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	tn := testutil.Tenant(t, db, "Élodie", "Mercier")
	_, err := lease.NewService(db, zap.NewNop()).AddTenant(l.ID, tn.ID, lease.AddTenantOptions{Principal: true})
	require.NoError(t, err)

	r, err := svc.Generate(context.Background(), l.ID, testutil.Date(2024, 2, 1), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "2024/02/quittance_"+r.Number+"_202402.pdf", r.DocumentKey)

	rc, name, err := svc.Document(context.Background(), r.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "quittance_"+r.Number+".pdf", name)
}

func TestStoreFailureKeepsReceipt(t *testing.T) {
	st := newMemStore()
	st.fail = true
	svc, db := newService(t, PDFRenderer{}, st)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)

	r, err := svc.Generate(context.Background(), l.ID, testutil.Date(2024, 2, 1), nil, false)
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Empty(t, r.DocumentKey)
}

func TestGenerateMonth(t *testing.T) {
	svc, db := newService(t, nil, nil)
	march := testutil.Date(2024, 3, 1)
	paid := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	unpaid := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "600", "", 5)
	future := testutil.Lease(t, db, testutil.Date(2024, 5, 1), "700", "", 5)
	ended := testutil.Lease(t, db, testutil.Date(2022, 1, 1), "800", "", 5)
	end := testutil.Date(2024, 1, 31)
	require.NoError(t, db.Model(&ended).Update("end_date", end).Error)

	pays := payment.NewService(db, zap.NewNop()).WithClock(func() time.Time { return today })
	_, err := pays.RecordQuick(paid.ID, march, testutil.Date(2024, 3, 3), models.ModeTransfer, "")
	require.NoError(t, err)

	res, err := svc.GenerateMonth(context.Background(), march, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Leases)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, paid.ID, res.Generated[0].LeaseID)
	assert.NotNil(t, res.Generated[0].PaymentID)

	res, err = svc.GenerateMonth(context.Background(), march, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Leases)
	assert.Empty(t, res.Errors)
	ids := []uint{res.Generated[0].LeaseID, res.Generated[1].LeaseID}
	assert.ElementsMatch(t, []uint{paid.ID, unpaid.ID}, ids)
	assert.NotContains(t, ids, future.ID)

	var apt models.Apartment
	require.NoError(t, db.First(&apt, unpaid.ApartmentID).Error)
	res, err = svc.GenerateMonth(context.Background(), march, []uint{apt.BuildingID}, false)
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, unpaid.ID, res.Generated[0].LeaseID)
}

func TestMarkSent(t *testing.T) {
	svc, db := newService(t, nil, nil)
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "500", "", 5)
	r, err := svc.Generate(context.Background(), l.ID, testutil.Date(2024, 3, 1), nil, false)
	require.NoError(t, err)

	_, err = svc.MarkSent(r.ID, "pigeon")
	require.Error(t, err)

	sent, err := svc.MarkSent(r.ID, models.SendEmail)
	require.NoError(t, err)
	assert.True(t, sent.Sent)

	f := false
	unsent, err := svc.List(Filter{Sent: &f})
	require.NoError(t, err)
	assert.Empty(t, unsent)
}

func TestRoundTripKeepsPrincipalAndTotal(t *testing.T) {
	svc, db := newService(t, nil, nil)
	leases := lease.NewService(db, zap.NewNop())
	l := testutil.Lease(t, db, testutil.Date(2023, 1, 1), "450", "50", 5)
	anna := testutil.Tenant(t, db, "Anna", "Durand")
	paul := testutil.Tenant(t, db, "Paul", "Martin")
	_, err := leases.AddTenant(l.ID, anna.ID, lease.AddTenantOptions{})
	require.NoError(t, err)
	_, err = leases.AddTenant(l.ID, paul.ID, lease.AddTenantOptions{Principal: true})
	require.NoError(t, err)

	pays := payment.NewService(db, zap.NewNop()).WithClock(func() time.Time { return today })
	res, err := pays.RecordQuick(l.ID, testutil.Date(2024, 4, 1), testutil.Date(2024, 4, 2), models.ModeTransfer, "")
	require.NoError(t, err)

	r, err := svc.GenerateFromPayment(context.Background(), res.Payment.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Regenerate(context.Background(), r.ID)
		require.NoError(t, err)
		snap, err := svc.Snapshot(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "Paul Martin", snap.Principal)
		assert.Equal(t, "500.00", snap.Total.StringFixed(2))
		assert.Equal(t, "Anna Durand et Paul Martin", snap.DisplayName)
		assert.Equal(t, "Anna Durand\nPaul Martin", snap.ReceiptNames)
		assert.Equal(t, r.Number, snap.Number)
	}
}

func TestSnapshotText(t *testing.T) {
	s := Snapshot{
		Month:   testutil.Date(2024, 2, 1),
		Tenants: []string{"Anna Durand", "Paul Martin", "Léa Petit"},
		Total:   testutil.Money("500"),
	}
	assert.Equal(t, "Février 2024", s.PeriodLabel())
	assert.Equal(t, 29, s.PeriodEnd().Day())
	text := s.Acknowledgement()
	assert.Contains(t, text, "de Anna Durand, Paul Martin et Léa Petit")
	assert.Contains(t, text, "500.00 euros")
	assert.Contains(t, text, "du 01/02/2024 au 29/02/2024")

	s.Tenants = nil
	assert.True(t, strings.Contains(s.Acknowledgement(), "reçu du locataire"))
}

func TestDiskStore(t *testing.T) {
	st := DiskStore{Root: t.TempDir()}
	key := DocumentKey(testutil.Date(2025, 3, 1), "Q2025030001")
	assert.Equal(t, "2025/03/quittance_Q2025030001_202503.pdf", key)

	require.NoError(t, st.Put(context.Background(), key, []byte("%PDF-1.3")))
	rc, err := st.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}
