// Package backup dumps the whole database to a JSON file and restores it.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"gestion-locative/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	FormatVersion = "1.0"
	filePrefix    = "backup_"
	fileSuffix    = ".json"
	batchSize     = 200
)

// Snapshot is the file layout. Tables are listed in foreign key order.
type Snapshot struct {
	Timestamp   time.Time                  `json:"timestamp"`
	Version     string                     `json:"version"`
	Stats       map[string]int             `json:"stats"`
	Users       []models.User              `json:"users"`
	AuditLogs   []models.AuditLog          `json:"audit_logs"`
	Owners      []models.Owner             `json:"owners"`
	Buildings   []models.Building          `json:"buildings"`
	Apartments  []models.Apartment         `json:"apartments"`
	Tenants     []models.Tenant            `json:"tenants"`
	Leases      []models.Lease             `json:"leases"`
	Memberships []models.TenancyMembership `json:"tenancy_memberships"`
	Types       []models.ExpenseType       `json:"expense_types"`
	Expenses    []models.Expense           `json:"expenses"`
	Allocations []models.ExpenseAllocation `json:"expense_allocations"`
	Payments    []models.Payment           `json:"payments"`
	Receipts    []models.Receipt           `json:"receipts"`
}

type table struct {
	name  string
	model any
	rows  any // pointer to the snapshot slice
}

func (s *Snapshot) tables() []table {
	return []table{
		{"users", &models.User{}, &s.Users},
		{"audit_logs", &models.AuditLog{}, &s.AuditLogs},
		{"owners", &models.Owner{}, &s.Owners},
		{"buildings", &models.Building{}, &s.Buildings},
		{"apartments", &models.Apartment{}, &s.Apartments},
		{"tenants", &models.Tenant{}, &s.Tenants},
		{"leases", &models.Lease{}, &s.Leases},
		{"tenancy_memberships", &models.TenancyMembership{}, &s.Memberships},
		{"expense_types", &models.ExpenseType{}, &s.Types},
		{"expenses", &models.Expense{}, &s.Expenses},
		{"expense_allocations", &models.ExpenseAllocation{}, &s.Allocations},
		{"payments", &models.Payment{}, &s.Payments},
		{"receipts", &models.Receipt{}, &s.Receipts},
	}
}

func count(rows any) int {
	return reflect.ValueOf(rows).Elem().Len()
}

// Objects is the number of rows across all tables.
func (s *Snapshot) Objects() int {
	n := 0
	for _, t := range s.tables() {
		n += count(t.rows)
	}
	return n
}

type Manager struct {
	db  *gorm.DB
	log *zap.Logger
	dir string
	now func() time.Time
}

func NewManager(db *gorm.DB, log *zap.Logger, dir string) *Manager {
	return &Manager{db: db, log: log, dir: dir, now: time.Now}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Dump reads every table inside one transaction.
func (m *Manager) Dump() (*Snapshot, error) {
	s := &Snapshot{Timestamp: m.now().UTC(), Version: FormatVersion, Stats: map[string]int{}}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range s.tables() {
			if err := tx.Model(t.model).Order("id").Find(t.rows).Error; err != nil {
				return fmt.Errorf("lecture %s: %w", t.name, err)
			}
			s.Stats[t.name] = count(t.rows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) Write(w io.Writer) (*Snapshot, error) {
	s, err := m.Dump()
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("écriture sauvegarde: %w", err)
	}
	return s, nil
}

// Create writes a new backup file in the backup folder. An empty name
// gives backup_<yyyymmdd>_<hhmmss>.json.
func (m *Manager) Create(name string) (string, *Snapshot, error) {
	if name == "" {
		name = filePrefix + m.now().Format("20060102_150405") + fileSuffix
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("dossier %s: %w", m.dir, err)
	}
	path := filepath.Join(m.dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	s, err := m.Write(f)
	if err != nil {
		return "", nil, err
	}
	m.log.Info("sauvegarde créée", zap.String("path", path), zap.Int("objects", s.Objects()))
	return path, s, nil
}

func Read(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("lecture sauvegarde: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("version de sauvegarde %q non prise en charge", s.Version)
	}
	return &s, nil
}

// Open reads a backup given by path, or by name inside the backup folder.
func (m *Manager) Open(name string) (*Snapshot, error) {
	path := name
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(m.dir, filepath.Base(name))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sauvegarde introuvable: %s", name)
	}
	defer f.Close()
	return Read(f)
}

// Restore replaces the content of every table with the snapshot, in one
// transaction.
func (m *Manager) Restore(s *Snapshot) (int, error) {
	tables := s.tables()
	restored := 0
	err := m.db.Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			t := tables[i]
			err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t.model).Error
			if err != nil {
				return fmt.Errorf("vidage %s: %w", t.name, err)
			}
		}
		for _, t := range tables {
			n := count(t.rows)
			if n == 0 {
				continue
			}
			if err := tx.Omit(clause.Associations).CreateInBatches(t.rows, batchSize).Error; err != nil {
				return fmt.Errorf("restauration %s: %w", t.name, err)
			}
			restored += n
		}
		if tx.Dialector.Name() == "postgres" {
			for _, t := range tables {
				seq := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1), MAX(id) IS NOT NULL) FROM %s", t.name, t.name)
				if err := tx.Exec(seq).Error; err != nil {
					return fmt.Errorf("séquence %s: %w", t.name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.log.Info("sauvegarde restaurée", zap.Time("timestamp", s.Timestamp), zap.Int("objects", restored))
	return restored, nil
}

type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Objects  int       `json:"objects"` // -1 when the file cannot be read
}

// List returns the backup files of the folder, newest name first.
func (m *Manager) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		fi := FileInfo{Name: name, Size: info.Size(), Modified: info.ModTime(), Objects: -1}
		if s, err := m.Open(filepath.Join(m.dir, name)); err == nil {
			fi.Objects = s.Objects()
		}
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}
