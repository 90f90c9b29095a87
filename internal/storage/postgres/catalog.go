package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/rpgbot/internal/catalog"
	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// CatalogRepository persists weapon and item definitions.
type CatalogRepository struct {
	db *pgxpool.Pool
}

// NewCatalogRepository creates a CatalogRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Weapons returns every stored weapon ordered by id.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CatalogRepository) Weapons(ctx context.Context) ([]combat.Weapon, error) {
	rows, err := r.db.Query(ctx, `
		SELECT key, name, icon, min_damage, max_damage,
		       crit_num, crit_den, crit_multiplier, pierce
		FROM weapons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing weapons: %w", err)
	}
	defer rows.Close()

	weapons := make([]combat.Weapon, 0)
	for rows.Next() {
		var w combat.Weapon
		if err := rows.Scan(
			&w.Key, &w.Name, &w.Icon, &w.MinDamage, &w.MaxDamage,
			&w.Crit.Num, &w.Crit.Den, &w.CritMultiplier, &w.Pierce,
		); err != nil {
			return nil, fmt.Errorf("scanning weapon row: %w", err)
		}
		weapons = append(weapons, w)
	}
	return weapons, rows.Err()
}

// Items returns every stored item definition ordered by id.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CatalogRepository) Items(ctx context.Context) ([]*combat.ItemDef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT key, name, description, icon, kind, min_amount, max_amount,
		       backfire_num, backfire_den, backfire_min, backfire_max, lua
		FROM items ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := make([]*combat.ItemDef, 0)
	for rows.Next() {
		var (
			d    combat.ItemDef
			kind string
		)
		if err := rows.Scan(
			&d.Key, &d.Name, &d.Description, &d.Icon, &kind, &d.Min, &d.Max,
			&d.Backfire.Num, &d.Backfire.Den, &d.BackfireMin, &d.BackfireMax, &d.Script,
		); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		d.Kind = combat.ItemKind(kind)
		items = append(items, &d)
	}
	return items, rows.Err()
}

// Load reads the whole catalog into a Registry.
//
// Postcondition: Returns a Registry holding every stored definition, or an
// error if any stored definition is invalid.
func (r *CatalogRepository) Load(ctx context.Context) (*catalog.Registry, error) {
	weapons, err := r.Weapons(ctx)
	if err != nil {
		return nil, err
	}
	items, err := r.Items(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := catalog.FromDefs(weapons, items)
	if err != nil {
		return nil, fmt.Errorf("building catalog from database: %w", err)
	}
	return reg, nil
}

// Seed upserts weapons and items by key in a single transaction.
//
// Precondition: every definition must be valid.
// Postcondition: Weapons and Items return the seeded definitions; rows whose
// keys were not seeded are left alone.
func (r *CatalogRepository) Seed(ctx context.Context, weapons []combat.Weapon, items []*combat.ItemDef) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, w := range weapons {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("seeding weapons: %w", err)
		}
		crit := normalized(w.Crit)
		batch.Queue(`
			INSERT INTO weapons (key, name, icon, min_damage, max_damage,
			                     crit_num, crit_den, crit_multiplier, pierce)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (key) DO UPDATE SET
				name = EXCLUDED.name, icon = EXCLUDED.icon,
				min_damage = EXCLUDED.min_damage, max_damage = EXCLUDED.max_damage,
				crit_num = EXCLUDED.crit_num, crit_den = EXCLUDED.crit_den,
				crit_multiplier = EXCLUDED.crit_multiplier, pierce = EXCLUDED.pierce`,
			w.Key, w.Name, w.Icon, w.MinDamage, w.MaxDamage,
			crit.Num, crit.Den, w.CritMultiplier, w.Pierce,
		)
	}
	for _, d := range items {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("seeding items: %w", err)
		}
		backfire := normalized(d.Backfire)
		batch.Queue(`
			INSERT INTO items (key, name, description, icon, kind, min_amount, max_amount,
			                   backfire_num, backfire_den, backfire_min, backfire_max, lua)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (key) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description,
				icon = EXCLUDED.icon, kind = EXCLUDED.kind,
				min_amount = EXCLUDED.min_amount, max_amount = EXCLUDED.max_amount,
				backfire_num = EXCLUDED.backfire_num, backfire_den = EXCLUDED.backfire_den,
				backfire_min = EXCLUDED.backfire_min, backfire_max = EXCLUDED.backfire_max,
				lua = EXCLUDED.lua`,
			d.Key, d.Name, d.Description, d.Icon, string(d.Kind), d.Min, d.Max,
			backfire.Num, backfire.Den, d.BackfireMin, d.BackfireMax, d.Script,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}

// normalized maps the zero ratio, meaning "never", to 0/1 so it satisfies the
// positive-denominator column checks.
func normalized(r dice.Ratio) dice.Ratio {
	if r.Den <= 0 {
		return dice.Ratio{Num: 0, Den: 1}
	}
	return r
}
