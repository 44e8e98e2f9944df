package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gestion-locative/internal/models"
	"gestion-locative/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var stamp = time.Date(2024, 1, 8, 15, 30, 45, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB) models.Lease {
	t.Helper()
	l := testutil.Lease(t, db, testutil.Date(2024, 1, 1), "500", "50", 5)
	tn := testutil.Tenant(t, db, "Alice", "Martin")
	require.NoError(t, db.Create(&models.TenancyMembership{
		LeaseID: l.ID, TenantID: tn.ID, Principal: true, Order: 1,
		EntryDate: l.StartDate, Role: models.RoleHolder,
	}).Error)
	require.NoError(t, db.Create(&models.Payment{
		LeaseID:     l.ID,
		Month:       testutil.Date(2024, 1, 1),
		Rent:        testutil.Money("500"),
		Charges:     testutil.Money("50"),
		Other:       testutil.Money("0"),
		PaymentDate: testutil.Date(2024, 1, 4),
		Mode:        models.ModeTransfer,
		Status:      models.PaymentValidated,
		Validated:   true,
	}).Error)
	require.NoError(t, db.Create(&models.User{
		Name: "Ana", Email: "ana@example.fr", PasswordHash: "$2a$10$hash", Role: models.RoleAdmin, Active: true,
	}).Error)
	return l
}

func newManager(db *gorm.DB, dir string) *Manager {
	return NewManager(db, zap.NewNop(), dir).WithClock(func() time.Time { return stamp })
}

func TestDumpCountsEveryTable(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)

	s, err := newManager(db, t.TempDir()).Dump()
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, s.Version)
	assert.Equal(t, 1, s.Stats["leases"])
	assert.Equal(t, 1, s.Stats["tenancy_memberships"])
	assert.Equal(t, 1, s.Stats["payments"])
	assert.Equal(t, 0, s.Stats["receipts"])
	assert.Len(t, s.Stats, 13)
	assert.Equal(t, 7, s.Objects()) // building, apartment, lease, tenant, membership, payment, user
}

func TestRestoreIntoAnotherDatabase(t *testing.T) {
	src := testutil.NewDB(t)
	l := seed(t, src)

	var buf bytes.Buffer
	_, err := newManager(src, t.TempDir()).Write(&buf)
	require.NoError(t, err)

	dst := testutil.NewDB(t)
	testutil.Tenant(t, dst, "Bruno", "Petit") // replaced by the restore
	s, err := Read(&buf)
	require.NoError(t, err)
	n, err := newManager(dst, t.TempDir()).Restore(s)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	var tenants []models.Tenant
	require.NoError(t, dst.Find(&tenants).Error)
	require.Len(t, tenants, 1)
	assert.Equal(t, "Alice", tenants[0].FirstName)

	var got models.Lease
	require.NoError(t, dst.Preload("Memberships").First(&got, l.ID).Error)
	assert.Equal(t, "500.00", got.MonthlyRent.Decimal.StringFixed(2))
	require.Len(t, got.Memberships, 1)
	assert.True(t, got.Memberships[0].Principal)

	var p models.Payment
	require.NoError(t, dst.Where("lease_id = ?", l.ID).First(&p).Error)
	assert.True(t, p.Validated)
	assert.Equal(t, "550.00", p.Total().StringFixed(2))

	var u models.User
	require.NoError(t, dst.First(&u).Error)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	_, err := Read(strings.NewReader(`{"version":"9.9"}`))
	assert.Error(t, err)
	_, err = Read(strings.NewReader(`pas du json`))
	assert.Error(t, err)
}

func TestCreateOpenAndList(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	dir := filepath.Join(t.TempDir(), "backups")
	m := newManager(db, dir)

	path, _, err := m.Create("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20240108_153045.json"), path)

	_, _, err = m.Create("backup_manuel.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_abime.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := m.List()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "backup_manuel.json", files[0].Name)
	assert.Equal(t, 7, files[0].Objects)
	assert.Equal(t, "backup_abime.json", files[1].Name)
	assert.Equal(t, -1, files[1].Objects)

	// by name inside the folder
	s, err := m.Open("backup_20240108_153045.json")
	require.NoError(t, err)
	assert.True(t, s.Timestamp.Equal(stamp))

	_, err = m.Open("absent.json")
	assert.Error(t, err)
}

func TestListMissingFolder(t *testing.T) {
	files, err := newManager(testutil.NewDB(t), filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, files)
}
