// Package yamlfile persists homes as one YAML document per player under
// <dataDir>/players/<playerID>.yml, in the layout:
//
//	homes:
//	  base: [12.5, 64, -30, overworld]
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// Ext is the file extension of per-player files.
const Ext = ".yml"

const playersDir = "players"

// ErrInvalidPlayerID is returned for player IDs that cannot be used as a file name.
var ErrInvalidPlayerID = errors.New("player id is not a valid file name")

// yamlPlayerFile is the top-level YAML structure of a player file.
type yamlPlayerFile struct {
	Homes yamlHomes `yaml:"homes"`
}

// yamlHomes maps home names to homes. An empty sequence ("homes: []") is
// accepted as no homes, since older files were written that way.
type yamlHomes map[string]yamlHome

// UnmarshalYAML decodes a mapping, or an empty sequence as an empty map.
func (m *yamlHomes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode && len(value.Content) == 0 {
		*m = yamlHomes{}
		return nil
	}
	var homes map[string]yamlHome
	if err := value.Decode(&homes); err != nil {
		return err
	}
	*m = homes
	return nil
}

// yamlHome is the positional [x, y, z, world] form of a home.
type yamlHome struct {
	X, Y, Z float64
	World   string
}

// MarshalYAML writes the home as a flow-style 4-element sequence.
func (h yamlHome) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []interface{}{h.X, h.Y, h.Z, h.World} {
		var item yaml.Node
		if err := item.Encode(v); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &item)
	}
	return node, nil
}

// UnmarshalYAML reads the 4-element sequence.
func (h *yamlHome) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 4 {
		return fmt.Errorf("line %d: home must be a list of [x, y, z, world]", value.Line)
	}
	for i, dst := range []*float64{&h.X, &h.Y, &h.Z} {
		if err := value.Content[i].Decode(dst); err != nil {
			return fmt.Errorf("line %d: coordinate %d: %w", value.Line, i, err)
		}
	}
	if err := value.Content[3].Decode(&h.World); err != nil {
		return fmt.Errorf("line %d: world: %w", value.Line, err)
	}
	return nil
}

// Repository stores homes in per-player YAML files. It implements home.Repository.
type Repository struct {
	dir string
}

// NewRepository creates a Repository rooted at dataDir.
//
// Precondition: dataDir must be non-empty.
// Postcondition: No filesystem access happens until LoadAll or SavePlayer.
func NewRepository(dataDir string) *Repository {
	return &Repository{dir: filepath.Join(dataDir, playersDir)}
}

// Dir returns the directory holding the player files.
func (r *Repository) Dir() string { return r.dir }

// LoadAll reads every <playerID>.yml in the players directory, creating the
// directory if it does not exist.
//
// Postcondition: Returns every readable player's homes. A player file that
// cannot be read or parsed is skipped and reported as a *home.PersistenceError
// in the joined error, alongside the players that did load. A nil map means
// the directory itself could not be read.
func (r *Repository) LoadAll(ctx context.Context) (map[string]home.PlayerHomes, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating players directory %s: %w", r.dir, err)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading players directory %s: %w", r.dir, err)
	}

	out := make(map[string]home.PlayerHomes)
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != Ext {
			continue
		}
		playerID := strings.TrimSuffix(name, Ext)
		homes, err := LoadPlayerFile(filepath.Join(r.dir, name), playerID)
		if err != nil {
			errs = append(errs, &home.PersistenceError{Player: playerID, Err: err})
			continue
		}
		out[playerID] = homes
	}
	return out, errors.Join(errs...)
}

// ValidateHome rejects homes whose owner cannot be used as a file name, so
// they are refused when set instead of failing at every save.
func (r *Repository) ValidateHome(h home.Home) error {
	if err := ValidatePlayerID(h.Owner); err != nil {
		return fmt.Errorf("%w: %w", home.ErrInvalidHome, err)
	}
	return nil
}

// SavePlayer writes homes to <playerID>.yml, replacing any previous content.
// The file is written to a temporary name and renamed into place.
//
// Precondition: playerID must be a valid file name (see ValidatePlayerID).
func (r *Repository) SavePlayer(_ context.Context, playerID string, homes home.PlayerHomes) error {
	if err := ValidatePlayerID(playerID); err != nil {
		return err
	}
	data, err := MarshalPlayer(homes)
	if err != nil {
		return fmt.Errorf("encoding homes for %s: %w", playerID, err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating players directory %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, playerID+Ext)
	tmp, err := os.CreateTemp(r.dir, playerID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", playerID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// LoadPlayerFile reads one player file.
//
// Postcondition: Returns the player's homes (possibly empty) or a non-nil error.
func LoadPlayerFile(path, playerID string) (home.PlayerHomes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading player file %s: %w", path, err)
	}
	homes, err := UnmarshalPlayer(data, playerID)
	if err != nil {
		return nil, fmt.Errorf("parsing player file %s: %w", path, err)
	}
	return homes, nil
}

// MarshalPlayer encodes homes in the player file format.
func MarshalPlayer(homes home.PlayerHomes) ([]byte, error) {
	file := yamlPlayerFile{Homes: make(yamlHomes, len(homes))}
	for name, h := range homes {
		file.Homes[name] = yamlHome{X: h.Position.X, Y: h.Position.Y, Z: h.Position.Z, World: h.World}
	}
	return yaml.Marshal(file)
}

// UnmarshalPlayer decodes a player file, binding every home to playerID.
//
// Postcondition: Returns validated homes or a non-nil error.
func UnmarshalPlayer(data []byte, playerID string) (home.PlayerHomes, error) {
	var file yamlPlayerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	homes := make(home.PlayerHomes, len(file.Homes))
	for name, yh := range file.Homes {
		h, err := home.New(playerID, name, home.Position{X: yh.X, Y: yh.Y, Z: yh.Z}, yh.World)
		if err != nil {
			return nil, err
		}
		homes[name] = h
	}
	return homes, nil
}

// ValidatePlayerID rejects IDs that would escape the players directory or
// produce hidden or temporary files.
func ValidatePlayerID(playerID string) error {
	if playerID == "" || playerID == "." || playerID == ".." ||
		strings.ContainsAny(playerID, `/\`+"\x00") || strings.HasPrefix(playerID, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidPlayerID, playerID)
	}
	return nil
}
