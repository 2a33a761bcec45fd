package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageCopy_LeavesOriginal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook"), 0o600))
	dir := filepath.Join(t.TempDir(), "uploads")

	staged, err := stageCopy(src, dir, ".xlsx")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(staged))
	assert.True(t, strings.HasSuffix(staged, ".xlsx"))
	got, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(got))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestStageCopy_MissingSource(t *testing.T) {
	_, err := stageCopy(filepath.Join(t.TempDir(), "nope.xlsx"), t.TempDir(), ".xlsx")
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	known := core.NewError(core.KindNotFound, "export file", "no data found for the specified criteria")
	assert.Contains(t, explain(known).Error(), "SYNC001")
	assert.ErrorIs(t, explain(known), known)

	unknown := errors.New("something odd")
	assert.Equal(t, unknown, explain(unknown))
}

func TestImportRejectsExtension(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"import", "report.csv"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
