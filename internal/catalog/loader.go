package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// Span is an inclusive [min, max] range in a definition file.
type Span struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// WeaponFile is the on-disk shape of one weapon definition.
type WeaponFile struct {
	Key            string     `yaml:"key"`
	Name           string     `yaml:"name"`
	Icon           string     `yaml:"icon"`
	Damage         Span       `yaml:"damage"`
	Crit           dice.Ratio `yaml:"crit"`
	CritMultiplier int        `yaml:"crit_multiplier"`
	Pierce         int        `yaml:"pierce"`
}

// Weapon converts f to a combat.Weapon.
func (f WeaponFile) Weapon() combat.Weapon {
	return combat.Weapon{
		Key:            f.Key,
		Name:           f.Name,
		Icon:           f.Icon,
		MinDamage:      f.Damage.Min,
		MaxDamage:      f.Damage.Max,
		Crit:           f.Crit,
		CritMultiplier: f.CritMultiplier,
		Pierce:         f.Pierce,
	}
}

// Backfire is the self-damage branch of a risky item.
type Backfire struct {
	Chance dice.Ratio `yaml:"chance"`
	Span   `yaml:",inline"`
}

// ItemFile is the on-disk shape of one item definition.
type ItemFile struct {
	Key         string          `yaml:"key"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Icon        string          `yaml:"icon"`
	Kind        combat.ItemKind `yaml:"kind"`
	Amount      Span            `yaml:"amount"`
	Backfire    *Backfire       `yaml:"backfire,omitempty"`
	Script      string          `yaml:"script,omitempty"`
}

// ItemDef converts f to a combat.ItemDef.
func (f ItemFile) ItemDef() *combat.ItemDef {
	d := &combat.ItemDef{
		Key:         f.Key,
		Name:        f.Name,
		Description: f.Description,
		Icon:        f.Icon,
		Kind:        f.Kind,
		Min:         f.Amount.Min,
		Max:         f.Amount.Max,
		Script:      f.Script,
	}
	if f.Backfire != nil {
		d.Backfire = f.Backfire.Chance
		d.BackfireMin = f.Backfire.Min
		d.BackfireMax = f.Backfire.Max
	}
	return d
}

// LoadWeapons reads every .yaml file in dir as a weapon definition.
//
// Precondition: dir must be a readable directory.
// Postcondition: every returned weapon is valid; any invalid file is an error.
func LoadWeapons(dir string) ([]combat.Weapon, error) {
	var weapons []combat.Weapon
	err := eachYAML(dir, func(path string, data []byte) error {
		var f WeaponFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("LoadWeapons: cannot parse file %q: %w", path, err)
		}
		w := f.Weapon()
		if err := w.Validate(); err != nil {
			return fmt.Errorf("LoadWeapons: invalid weapon in %q: %w", path, err)
		}
		weapons = append(weapons, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return weapons, nil
}

// LoadItems reads every .yaml file in dir as an item definition.
//
// Precondition: dir must be a readable directory.
// Postcondition: every returned definition is valid; any invalid file is an error.
func LoadItems(dir string) ([]*combat.ItemDef, error) {
	var items []*combat.ItemDef
	err := eachYAML(dir, func(path string, data []byte) error {
		var f ItemFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		d := f.ItemDef()
		if err := d.Validate(); err != nil {
			return fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
		}
		items = append(items, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// LoadDir builds a Registry from a weapons directory and an items directory.
func LoadDir(weaponsDir, itemsDir string) (*Registry, error) {
	weapons, err := LoadWeapons(weaponsDir)
	if err != nil {
		return nil, err
	}
	items, err := LoadItems(itemsDir)
	if err != nil {
		return nil, err
	}
	return FromDefs(weapons, items)
}

// eachYAML calls fn for every .yaml/.yml file in dir, in directory order.
func eachYAML(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("catalog: cannot read directory %q: %w", dir, err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: cannot read file %q: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return err
		}
	}
	return nil
}
