package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	importVoyage string
	importShip   string
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Import an OVD workbook",
	Long: `Import an OVD (.xlsx or .xls) workbook into the fuel ledger.

The file is copied into the upload directory first; the original is left
in place. Rows that fail validation are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		ext := strings.ToLower(filepath.Ext(src))
		if ext != ".xlsx" && ext != ".xls" {
			return fmt.Errorf("unsupported file type %q: only .xlsx and .xls are accepted", ext)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		staged, err := stageCopy(src, a.Config.Upload.Dir, ext)
		if err != nil {
			return err
		}

		res, err := a.Service.ImportFile(cmd.Context(), cliActor(), core.ImportRequest{
			FilePath: staged,
			FileName: filepath.Base(src),
			VoyageID: importVoyage,
			ShipID:   importShip,
			SyncType: core.SyncManual,
		})
		if err != nil {
			return explain(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d of %d records (%d failed, %d ledger entries)\n",
			res.RecordsImported, res.RecordsProcessed, res.RecordsFailed, res.EntriesCreated)
		fmt.Fprintf(out, "   Sync history: %s\n", res.SyncHistoryID)
		for _, e := range res.Errors {
			fmt.Fprintf(out, "   - %s\n", e)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importVoyage, "voyage", "", "voyage id to attach the records to")
	importCmd.Flags().StringVar(&importShip, "ship", "", "ship id to attach the records to")
}

// stageCopy copies src into dir under a random name, since an import
// removes the file it reads.
func stageCopy(src, dir, ext string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(dir, uuid.NewString()+ext)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	return dst, out.Close()
}
