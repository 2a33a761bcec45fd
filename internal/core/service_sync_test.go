package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSync_Bidirectional(t *testing.T) {
	store := newMemStore()
	seedLedger(store)
	inbox := t.TempDir()
	svc, audit := newTestService(t, store, WithInboxDir(inbox))

	writeWorkbook(t, inbox, "b.xlsx", [][]string{
		ovdHeader,
		{"2024-03-05", "9876543", "V002", "7", "", "", ""},
	})
	writeWorkbook(t, inbox, "a.xlsx", [][]string{
		ovdHeader,
		{"2024-03-04", "9876543", "V002", "8", "", "", ""},
		{"2024-03-04", "9876543", "V002", "bad", "", "", ""},
	})
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("skip"), 0o644))

	res, err := svc.RunSync(context.Background(), testActor, SyncRequest{
		Direction: DirectionBidirectional,
		DateRange: &DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Export)
	assert.Equal(t, 2, res.Export.RecordsExported)
	require.NotNil(t, res.Import)
	assert.Equal(t, 2, res.Import.FilesProcessed)
	assert.Equal(t, 3, res.Import.RecordsProcessed)
	assert.Equal(t, 2, res.Import.RecordsImported)
	assert.Equal(t, 1, res.Import.RecordsFailed)
	assert.Equal(t, StatusPartialSuccess, res.Status)

	// Parent row first, then export and the two imports.
	require.Len(t, store.histories, 4)
	parent := store.histories[0]
	assert.Equal(t, res.SyncHistoryID, parent.ID)
	assert.Equal(t, OpBidirectional, parent.Operation)
	assert.Equal(t, FlowBidirectional, parent.Direction)
	assert.Equal(t, StatusPartialSuccess, parent.Status)
	assert.Equal(t, 2, parent.RecordsExported)
	assert.Equal(t, 2, parent.RecordsImported)
	assert.LessOrEqual(t, parent.RecordsImported+parent.RecordsFailed, parent.RecordsProcessed)
	assert.Equal(t, OpExport, store.histories[1].Operation)
	assert.Equal(t, "a.xlsx", store.files[1].FileName)

	_, statErr := os.Stat(filepath.Join(inbox, "notes.txt"))
	assert.NoError(t, statErr)

	syncAudits := audit.byAction(ActionTriggerManualSync)
	require.Len(t, syncAudits, 1)
	assert.Equal(t, ResultPartial, syncAudits[0].Result)
	assert.Equal(t, EntitySyncOperation, syncAudits[0].EntityType)
}

func TestRunSync_ExportNotFoundStopsRun(t *testing.T) {
	store := newMemStore()
	inbox := t.TempDir()
	svc, audit := newTestService(t, store, WithInboxDir(inbox))
	path := writeWorkbook(t, inbox, "a.xlsx", [][]string{
		ovdHeader,
		{"2024-03-04", "9876543", "V002", "8", "", "", ""},
	})

	res, err := svc.RunSync(context.Background(), SystemActor, SyncRequest{
		Direction: DirectionBidirectional,
		SyncType:  SyncAutomated,
		ConfigID:  "cfg-1",
	})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Import)
	assert.FileExists(t, path)

	assert.Equal(t, StatusFailed, store.histories[0].Status)
	assert.Equal(t, SyncAutomated, store.histories[0].SyncType)

	autos := audit.byAction(ActionAutomatedSync)
	require.Len(t, autos, 1)
	assert.Equal(t, ResultFailed, autos[0].Result)
	assert.Equal(t, "system", autos[0].Actor.ID)
}

func TestRunSync_DefaultExportWindow(t *testing.T) {
	store := newMemStore()
	seedLedger(store)
	svc, _ := newTestService(t, store)

	res, err := svc.RunSync(context.Background(), testActor, SyncRequest{Direction: DirectionExport})
	require.NoError(t, err)

	// fixedNow is 2024-03-15; the default window is the 30 days before it.
	assert.Equal(t, "OVD_3.10.1_9876543_2024-02-14_2024-03-15_2024-03-15.xlsx", res.Export.FileName)
	assert.Nil(t, res.Import)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestRunSync_ImportSkipsUnreadableFiles(t *testing.T) {
	store := newMemStore()
	inbox := t.TempDir()
	svc, _ := newTestService(t, store, WithInboxDir(inbox))

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.xlsx"), []byte("garbage"), 0o644))
	writeWorkbook(t, inbox, "b.xlsx", [][]string{
		ovdHeader,
		{"2024-03-04", "9876543", "V002", "8", "", "", ""},
	})

	res, err := svc.RunSync(context.Background(), testActor, SyncRequest{Direction: DirectionImport})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Import.FilesProcessed)
	assert.Equal(t, 1, res.Import.FilesFailed)
	assert.Equal(t, 1, res.Import.RecordsImported)
	assert.Equal(t, StatusPartialSuccess, res.Status)
}

func TestRunSync_ImportConnectivityAborts(t *testing.T) {
	store := newMemStore()
	store.failOn["InsertLedgerEntries"] = errors.New("connection reset")
	inbox := t.TempDir()
	svc, _ := newTestService(t, store, WithInboxDir(inbox))
	writeWorkbook(t, inbox, "a.xlsx", [][]string{
		ovdHeader,
		{"2024-03-04", "9876543", "V002", "8", "", "", ""},
	})

	res, err := svc.RunSync(context.Background(), testActor, SyncRequest{Direction: DirectionImport})
	require.Error(t, err)
	assert.Equal(t, KindConnectivity, KindOf(err))
	assert.Equal(t, StatusFailed, res.Status)
}

func TestRunSync_EmptyInbox(t *testing.T) {
	svc, _ := newTestService(t, newMemStore(), WithInboxDir(filepath.Join(t.TempDir(), "missing")))

	res, err := svc.RunSync(context.Background(), testActor, SyncRequest{Direction: DirectionImport})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, res.Import.FilesProcessed)
}

func TestRunSync_InvalidDirection(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)

	_, err := svc.RunSync(context.Background(), testActor, SyncRequest{Direction: "SIDEWAYS"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, store.histories)
}

func TestGetSyncStatus(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 12; i++ {
		require.NoError(t, store.CreateSyncHistory(context.Background(), &SyncHistory{Status: StatusSuccess, RecordsProcessed: i}))
	}
	svc, _ := newTestService(t, store)

	rows, err := svc.GetSyncStatus(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, DefaultStatusLimit)
	assert.Equal(t, 11, rows[0].RecordsProcessed, "newest first")

	rows, err = svc.GetSyncStatus(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestGetSyncStatus_StorageError(t *testing.T) {
	store := newMemStore()
	store.failOn["ListSyncHistory"] = errors.New("dial tcp: connection refused")
	svc, _ := newTestService(t, store)

	_, err := svc.GetSyncStatus(context.Background(), 5)
	assert.Equal(t, KindConnectivity, KindOf(err))
}
