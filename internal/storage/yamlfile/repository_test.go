package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/simplehome/internal/home"
)

func sampleHomes(owner string) home.PlayerHomes {
	return home.PlayerHomes{
		"base": {Owner: owner, Name: "base", Position: home.Position{X: 12.5, Y: 64, Z: -30}, World: "overworld"},
		"mine": {Owner: owner, Name: "mine", Position: home.Position{X: -1, Y: 11.25, Z: 0}, World: "caves"},
	}
}

func TestLoadAllCreatesMissingDirectory(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	repo := NewRepository(dataDir)

	got, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	info, err := os.Stat(repo.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveThenLoad(t *testing.T) {
	repo := NewRepository(t.TempDir())
	ctx := context.Background()
	require.NoError(t, repo.SavePlayer(ctx, "Steve", sampleHomes("Steve")))
	require.NoError(t, repo.SavePlayer(ctx, "Alex", home.PlayerHomes{}))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleHomes("Steve"), got["Steve"])
	assert.Empty(t, got["Alex"])
	assert.Len(t, got, 2)
}

func TestSavePlayerOverwrites(t *testing.T) {
	repo := NewRepository(t.TempDir())
	ctx := context.Background()
	require.NoError(t, repo.SavePlayer(ctx, "Steve", sampleHomes("Steve")))

	only := home.PlayerHomes{"base": sampleHomes("Steve")["base"]}
	require.NoError(t, repo.SavePlayer(ctx, "Steve", only))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, only, got["Steve"])

	entries, err := os.ReadDir(repo.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileFormat(t *testing.T) {
	repo := NewRepository(t.TempDir())
	require.NoError(t, repo.SavePlayer(context.Background(), "Steve", home.PlayerHomes{
		"base": {Owner: "Steve", Name: "base", Position: home.Position{X: 12.5, Y: 64, Z: -30}, World: "overworld"},
	}))

	data, err := os.ReadFile(filepath.Join(repo.Dir(), "Steve.yml"))
	require.NoError(t, err)
	assert.Equal(t, "homes:\n    base: [12.5, 64, -30, overworld]\n", string(data))
}

func TestUnmarshalLegacyFiles(t *testing.T) {
	homes, err := UnmarshalPlayer([]byte("---\nhomes:\n  base:\n  - 100\n  - 65\n  - -12\n  - world\n...\n"), "Steve")
	require.NoError(t, err)
	require.Contains(t, homes, "base")
	assert.Equal(t, home.Position{X: 100, Y: 65, Z: -12}, homes["base"].Position)
	assert.Equal(t, "world", homes["base"].World)
	assert.Equal(t, "Steve", homes["base"].Owner)

	homes, err = UnmarshalPlayer([]byte("homes: []\n"), "Alex")
	require.NoError(t, err)
	assert.Empty(t, homes)
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	for name, doc := range map[string]string{
		"short list":  "homes:\n  base: [1, 2, 3]\n",
		"not a list":  "homes:\n  base: overworld\n",
		"bad number":  "homes:\n  base: [a, 2, 3, w]\n",
		"empty world": "homes:\n  base: [1, 2, 3, \"\"]\n",
	} {
		_, err := UnmarshalPlayer([]byte(doc), "Steve")
		assert.Error(t, err, name)
	}
}

func TestLoadAllSkipsOtherFiles(t *testing.T) {
	repo := NewRepository(t.TempDir())
	require.NoError(t, os.MkdirAll(repo.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(repo.Dir(), "backup.yml"), 0o755))

	got, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadAllSkipsCorruptFileAndKeepsOthers(t *testing.T) {
	repo := NewRepository(t.TempDir())
	require.NoError(t, repo.SavePlayer(context.Background(), "Steve", sampleHomes("Steve")))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "Alex.yml"), []byte("homes: {farm: [1, 2]}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "Herobrine.yml"), []byte("homes: [[[\n"), 0o644))

	got, err := repo.LoadAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, home.ErrPersistence)
	assert.Contains(t, err.Error(), `"Alex"`)
	assert.Contains(t, err.Error(), `"Herobrine"`)
	assert.Equal(t, map[string]home.PlayerHomes{"Steve": sampleHomes("Steve")}, got)
}

func TestStoreLoadInstallsReadablePlayers(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	repo := NewRepository(dataDir)
	require.NoError(t, repo.SavePlayer(ctx, "Steve", sampleHomes("Steve")))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "Alex.yml"), []byte("homes: {farm: [1, 2]}\n"), 0o644))

	s := home.NewStore(repo, home.NewPolicy(home.Unlimited, nil, nil), nil, false, zaptest.NewLogger(t))
	err := s.Load(ctx)
	require.ErrorIs(t, err, home.ErrPlayersSkipped)
	assert.ErrorIs(t, err, home.ErrPersistence)
	assert.Equal(t, []string{"Steve"}, s.Players())
	assert.Equal(t, []string{"base", "mine"}, s.ListHomeNames("Steve"))
}

func TestStoreRejectsOwnerUnusableAsFileName(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(t.TempDir())
	s := home.NewStore(repo, home.NewPolicy(home.Unlimited, nil, nil), nil, true, zaptest.NewLogger(t))
	require.NoError(t, s.Load(ctx))

	for _, owner := range []string{"realm/Steve", "..", ".hidden"} {
		err := s.SetHome(ctx, home.Home{Owner: owner, Name: "base", World: "overworld"})
		assert.ErrorIs(t, err, home.ErrInvalidHome, owner)
		assert.ErrorIs(t, err, ErrInvalidPlayerID, owner)
	}
	assert.Empty(t, s.Players())
	assert.Zero(t, s.TotalHomes())

	entries, err := os.ReadDir(repo.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidatePlayerID(t *testing.T) {
	for _, id := range []string{"Steve", "Alex_2", "Some Player"} {
		assert.NoError(t, ValidatePlayerID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../etc", `a\b`, "a/b", ".hidden"} {
		assert.ErrorIs(t, ValidatePlayerID(id), ErrInvalidPlayerID, id)
	}
	err := NewRepository(t.TempDir()).SavePlayer(context.Background(), "../escape", home.PlayerHomes{})
	assert.ErrorIs(t, err, ErrInvalidPlayerID)
}

func TestStoreRoundTripThroughFiles(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	s := home.NewStore(NewRepository(dataDir), home.NewPolicy(home.Unlimited, nil, nil), nil, false, logger)
	require.NoError(t, s.Load(ctx))
	for _, owner := range []string{"Steve", "Alex"} {
		for _, h := range sampleHomes(owner) {
			require.NoError(t, s.SetHome(ctx, h))
		}
	}
	require.NoError(t, s.Save(ctx))

	reloaded := home.NewStore(NewRepository(dataDir), home.NewPolicy(home.Unlimited, nil, nil), nil, false, logger)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"Alex", "Steve"}, reloaded.Players())
	for _, p := range reloaded.Players() {
		assert.Equal(t, []string{"base", "mine"}, reloaded.ListHomeNames(p))
		for name, want := range sampleHomes(p) {
			got, err := reloaded.GetHome(p, name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

// Property: encoding then decoding a player's homes is lossless.
func TestPropertyMarshalRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		owner := rapid.StringMatching(`[A-Za-z0-9_]{1,16}`).Draw(t, "owner")
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z][a-z0-9_]{0,11}`), 0, 8, rapid.ID[string]).Draw(t, "names")
		homes := make(home.PlayerHomes, len(names))
		for _, n := range names {
			homes[n] = home.Home{
				Owner: owner,
				Name:  n,
				Position: home.Position{
					X: rapid.Float64Range(-3e7, 3e7).Draw(t, "x"),
					Y: rapid.Float64Range(-64, 320).Draw(t, "y"),
					Z: rapid.Float64Range(-3e7, 3e7).Draw(t, "z"),
				},
				World: rapid.StringMatching(`[a-z][a-z_]{0,11}`).Draw(t, "world"),
			}
		}
		data, err := MarshalPlayer(homes)
		if err != nil {
			t.Fatalf("MarshalPlayer: %v", err)
		}
		got, err := UnmarshalPlayer(data, owner)
		if err != nil {
			t.Fatalf("UnmarshalPlayer: %v\n%s", err, data)
		}
		if len(got) != len(homes) {
			t.Fatalf("got %d homes, want %d", len(got), len(homes))
		}
		for n, want := range homes {
			if got[n] != want {
				t.Fatalf("home %q = %+v, want %+v", n, got[n], want)
			}
		}
	})
}
