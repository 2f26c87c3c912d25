package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vvka-141/pgstitch/internal/tui"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// resetFlags restores every command's flag values and Changed markers.
func resetFlags(t *testing.T) {
	t.Helper()
	rootFlags = rootFlagValues{}
	loadFlags = loadFlagValues{timeout: pgstitch.DefaultTimeout}
	discoverFlags = discoverFlagValues{}
	exportFlags = exportFlagValues{output: "-", timeout: pgstitch.DefaultTimeout}
	for _, c := range []*cobra.Command{rootCmd, loadCmd, discoverCmd, exportCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	for _, env := range []string{"PGSTITCH_CONNECTION_STRING", "DATABASE_URL", "PGHOST", "PGDATABASE"} {
		t.Setenv(env, "")
	}
	t.Setenv(tui.NonInteractiveEnvVar, "1")
}

// captureOutput points cmd at fresh buffers for stdout and stderr.
func captureOutput(t *testing.T, cmd *cobra.Command) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	return stdout, stderr
}

// writeProfitFiles writes the three yearly sales files into a temp dir.
func writeProfitFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"2022.csv": "date,sales,cost,profit\n2022-01-01,10,4,6\n2022-01-02,12,5,7\n",
		"2023.csv": "date,sales,cost,profit\n2023-01-01,20,8,12\n",
		"2024.csv": "date,sales,cost,profit,profit2\n2024-01-01,30,10,20,21\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
