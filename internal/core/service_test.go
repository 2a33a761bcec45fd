package core

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/ovd"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// memStore is an in-memory Store. InTx snapshots the state and restores it
// when fn fails, which is enough to observe rollback in tests.
type memStore struct {
	mu sync.Mutex

	files      []FileMetadata
	histories  []SyncHistory
	validation []ValidationErrorRow
	ledger     []ovd.Entry
	configs    map[string]SyncConfig
	runStates  map[string][]RunState
	nextSync   map[string]time.Time

	// rejectIMO makes InsertLedgerEntries refuse entries for that vessel.
	rejectIMO string
	// failOn makes the named method return the error.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		configs:   make(map[string]SyncConfig),
		runStates: make(map[string][]RunState),
		nextSync:  make(map[string]time.Time),
		failOn:    make(map[string]error),
	}
}

type memSnapshot struct {
	files      []FileMetadata
	histories  []SyncHistory
	validation []ValidationErrorRow
	ledger     []ovd.Entry
	configs    map[string]SyncConfig
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfgs := make(map[string]SyncConfig, len(m.configs))
	for k, v := range m.configs {
		cfgs[k] = v
	}
	return memSnapshot{
		files:      append([]FileMetadata(nil), m.files...),
		histories:  append([]SyncHistory(nil), m.histories...),
		validation: append([]ValidationErrorRow(nil), m.validation...),
		ledger:     append([]ovd.Entry(nil), m.ledger...),
		configs:    cfgs,
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files, m.histories, m.validation, m.ledger, m.configs = s.files, s.histories, s.validation, s.ledger, s.configs
}

func (m *memStore) fail(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failOn[method]
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) CreateFileMetadata(ctx context.Context, f *FileMetadata) error {
	if err := m.fail("CreateFileMetadata"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.NewString()
	f.CreatedAt = time.Now()
	m.files = append(m.files, *f)
	return nil
}

func (m *memStore) FinishFileMetadata(ctx context.Context, id string, status ProcessingStatus, errMsg string) error {
	if err := m.fail("FinishFileMetadata"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.files {
		if m.files[i].ID == id {
			m.files[i].ProcessingStatus = status
			m.files[i].ErrorMessage = errMsg
		}
	}
	return nil
}

func (m *memStore) CreateSyncHistory(ctx context.Context, h *SyncHistory) error {
	if err := m.fail("CreateSyncHistory"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.NewString()
	h.InitiatedAt = time.Now()
	m.histories = append(m.histories, *h)
	return nil
}

func (m *memStore) FinishSyncHistory(ctx context.Context, id string, c SyncCompletion) error {
	if err := m.fail("FinishSyncHistory"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.histories {
		h := &m.histories[i]
		if h.ID != id {
			continue
		}
		h.Status = c.Status
		h.RecordsProcessed = c.RecordsProcessed
		h.RecordsImported = c.RecordsImported
		h.RecordsExported = c.RecordsExported
		h.RecordsFailed = c.RecordsFailed
		h.ErrorLog = c.ErrorLog
		h.ExecutionTimeMs = c.ExecutionTime.Milliseconds()
		done := c.CompletedAt
		h.CompletedAt = &done
	}
	return nil
}

func (m *memStore) ListSyncHistory(ctx context.Context, limit int) ([]SyncStatusEntry, error) {
	if err := m.fail("ListSyncHistory"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncStatusEntry
	for i := len(m.histories) - 1; i >= 0 && len(out) < limit; i-- {
		e := SyncStatusEntry{SyncHistory: m.histories[i]}
		for _, f := range m.files {
			if f.ID == e.FileMetadataID {
				e.FileName, e.FileType = f.FileName, f.FileType
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) InsertValidationError(ctx context.Context, row ValidationErrorRow) error {
	if err := m.fail("InsertValidationError"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validation = append(m.validation, row)
	return nil
}

func (m *memStore) InsertLedgerEntries(ctx context.Context, entries []ovd.Entry) error {
	if err := m.fail("InsertLedgerEntries"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if m.rejectIMO != "" && e.IMO == m.rejectIMO {
			return errors.Join(ErrRowRejected, errors.New("violates check constraint"))
		}
	}
	m.ledger = append(m.ledger, entries...)
	return nil
}

func (m *memStore) QueryLedger(ctx context.Context, f LedgerFilter) ([]ovd.Entry, error) {
	if err := m.fail("QueryLedger"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ovd.Entry
	for _, e := range m.ledger {
		if f.VoyageID != "" && e.VoyageID != f.VoyageID {
			continue
		}
		if len(f.IMONumbers) > 0 && !contains(f.IMONumbers, e.IMO) {
			continue
		}
		if !f.Start.IsZero() && e.ConsumptionDate.Before(truncateDay(f.Start)) {
			continue
		}
		if !f.End.IsZero() && e.ConsumptionDate.After(truncateDay(f.End)) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConsumptionDate.Before(out[j].ConsumptionDate) })
	return out, nil
}

func (m *memStore) ListSyncConfigs(ctx context.Context, orgID string) ([]SyncConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncConfig
	for _, c := range m.configs {
		if orgID == "" || c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListEnabledSyncConfigs(ctx context.Context) ([]SyncConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncConfig
	for _, c := range m.configs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetSyncConfig(ctx context.Context, id string) (*SyncConfig, error) {
	if err := m.fail("GetSyncConfig"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, NewError(KindNotFound, "get sync config", "sync config not found")
	}
	c = c.clone()
	return &c, nil
}

func (m *memStore) CreateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	if err := m.fail("CreateSyncConfig"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.ID = uuid.NewString()
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	m.configs[cfg.ID] = cfg.clone()
	return nil
}

func (m *memStore) UpdateSyncConfig(ctx context.Context, cfg *SyncConfig) error {
	if err := m.fail("UpdateSyncConfig"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[cfg.ID]; !ok {
		return NewError(KindNotFound, "update sync config", "sync config not found")
	}
	cfg.UpdatedAt = time.Now()
	m.configs[cfg.ID] = cfg.clone()
	return nil
}

func (m *memStore) DeleteSyncConfig(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return NewError(KindNotFound, "delete sync config", "sync config not found")
	}
	delete(m.configs, id)
	return nil
}

func (m *memStore) SaveRunState(ctx context.Context, id string, st RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.configs[id]
	c.RetryCount = st.RetryCount
	c.Enabled = c.Enabled && st.Enabled
	if st.LastSyncAt != nil {
		c.LastSyncAt = st.LastSyncAt
	}
	m.configs[id] = c
	m.runStates[id] = append(m.runStates[id], st)
	return nil
}

func (m *memStore) SetNextSyncAt(ctx context.Context, id string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSync[id] = next
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// recordingAuditor keeps every appended record.
type recordingAuditor struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (a *recordingAuditor) Append(ctx context.Context, rec AuditRecord) *AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return &AuditEntry{ActionType: rec.Action, EntityType: rec.EntityType, EntityID: rec.EntityID, Result: rec.Result}
}

func (a *recordingAuditor) last() AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.records) == 0 {
		return AuditRecord{}
	}
	return a.records[len(a.records)-1]
}

func (a *recordingAuditor) byAction(action AuditAction) []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditRecord
	for _, r := range a.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

var testActor = Actor{ID: "user-1", Email: "ops@example.com", Role: "FLEET_MANAGER", OrganizationID: "org-1"}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, opts ...Option) (*Service, *recordingAuditor) {
	t.Helper()
	audit := &recordingAuditor{}
	opts = append([]Option{
		WithExportDir(t.TempDir()),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewService(store, audit, opts...), audit
}

// writeWorkbook saves rows as an xlsx file in dir and returns its path.
func writeWorkbook(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr(sheet, cell, v))
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

var ovdHeader = []string{"Date_UTC", "IMO", "Voyage_Number", "ME_Consumption_HFO", "AE_Consumption_MGO", "ME_Fuel_BDN", "AE_Fuel_BDN"}
