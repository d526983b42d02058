package importer_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/importer"
	"github.com/cory-johannsen/simplehome/internal/storage/yamlfile"
)

type flakySink struct {
	inner home.Repository
	fail  string
}

func (s *flakySink) SavePlayer(ctx context.Context, id string, homes home.PlayerHomes) error {
	if id == s.fail {
		return errors.New("constraint violation")
	}
	return s.inner.SavePlayer(ctx, id, homes)
}

func writeLegacy(t *testing.T, dir, player, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "players"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "players", player+".yml"), []byte(body), 0644))
}

func TestImporter_Run_CopiesLegacyFiles(t *testing.T) {
	srcDir := t.TempDir()
	writeLegacy(t, srcDir, "Steve", "homes:\n  base: [12.5, 64, -30, overworld]\n  farm: [100, 70, 100, overworld]\n")
	writeLegacy(t, srcDir, "Alex", "homes: []\n")

	dst := yamlfile.NewRepository(t.TempDir())
	imp := importer.New(yamlfile.NewRepository(srcDir), dst, zaptest.NewLogger(t))

	rep, err := imp.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Players)
	assert.Equal(t, 2, rep.Homes)
	assert.Empty(t, rep.Failed)

	got, err := dst.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "farm"}, got["Steve"].Names())
	assert.Equal(t, home.Position{X: 12.5, Y: 64, Z: -30}, got["Steve"]["base"].Position)
}

func TestImporter_Run_DryRunWritesNothing(t *testing.T) {
	srcDir := t.TempDir()
	writeLegacy(t, srcDir, "Steve", "homes:\n  base: [1, 2, 3, overworld]\n")

	dstDir := t.TempDir()
	imp := importer.New(yamlfile.NewRepository(srcDir), yamlfile.NewRepository(dstDir), zaptest.NewLogger(t))

	rep, err := imp.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Homes)

	_, err = os.Stat(filepath.Join(dstDir, "players", "Steve.yml"))
	assert.True(t, os.IsNotExist(err))
}

func TestImporter_Run_ContinuesPastFailures(t *testing.T) {
	srcDir := t.TempDir()
	writeLegacy(t, srcDir, "Alex", "homes:\n  a: [1, 2, 3, overworld]\n")
	writeLegacy(t, srcDir, "Steve", "homes:\n  b: [1, 2, 3, overworld]\n")

	dst := yamlfile.NewRepository(t.TempDir())
	imp := importer.New(yamlfile.NewRepository(srcDir), &flakySink{inner: dst, fail: "Alex"}, zaptest.NewLogger(t))

	rep, err := imp.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player Alex")
	assert.Equal(t, []string{"Alex"}, rep.Failed)
	assert.Equal(t, 1, rep.Players)

	got, err := dst.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, "Steve")
}

func TestImporter_Run_SourceError(t *testing.T) {
	srcDir := t.TempDir()
	writeLegacy(t, srcDir, "Steve", "homes: {base: not-a-list}\n")

	imp := importer.New(yamlfile.NewRepository(srcDir), yamlfile.NewRepository(t.TempDir()), zaptest.NewLogger(t))
	_, err := imp.Run(context.Background(), false)
	assert.Error(t, err)
}

func TestProperty_ImportPreservesCounts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		src := yamlfile.NewRepository(t.TempDir())
		dst := yamlfile.NewRepository(t.TempDir())
		ctx := context.Background()

		nPlayers := rapid.IntRange(0, 5).Draw(rt, "players")
		want := 0
		for p := 0; p < nPlayers; p++ {
			id := fmt.Sprintf("player%d", p)
			n := rapid.IntRange(0, 4).Draw(rt, "homes")
			homes := make(home.PlayerHomes, n)
			for i := 0; i < n; i++ {
				h, err := home.New(id, fmt.Sprintf("h%d", i), home.Position{X: float64(i)}, "overworld")
				if err != nil {
					rt.Fatalf("home.New: %v", err)
				}
				homes[h.Name] = h
			}
			if err := src.SavePlayer(ctx, id, homes); err != nil {
				rt.Fatalf("seeding: %v", err)
			}
			want += n
		}

		rep, err := importer.New(src, dst, zaptest.NewLogger(t)).Run(ctx, false)
		if err != nil {
			rt.Fatalf("Run: %v", err)
		}
		if rep.Players != nPlayers || rep.Homes != want {
			rt.Fatalf("report %+v, want %d players %d homes", rep, nPlayers, want)
		}
	})
}
