package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Catalog operations. Package definitions are admin-managed and read-only
// from the ledger's perspective.

func (s *Store) CreatePackage(ctx context.Context, input CreatePackageInput) (Package, error) {
	pkg := Package{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Description:  input.Description,
		Percentage:   input.Percentage,
		MaturityDays: input.MaturityDays,
		Color:        input.Color,
		Image:        input.Image,
	}
	if pkg.Color == "" {
		pkg.Color = "#000000"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO packages (id, name, description, percentage, maturity_days, color, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pkg.ID, pkg.Name, pkg.Description, pkg.Percentage, pkg.MaturityDays, pkg.Color, pkg.Image)
	if err != nil {
		if isUniqueViolation(err) {
			return Package{}, ErrPackageExists
		}
		return Package{}, err
	}
	return pkg, nil
}

func (s *Store) UpdatePackage(ctx context.Context, input UpdatePackageInput) (Package, error) {
	var pkg Package
	err := s.pool.QueryRow(ctx, `
		UPDATE packages
		SET name = $2,
		    description = $3,
		    percentage = $4,
		    maturity_days = $5,
		    is_disabled = $6,
		    color = $7,
		    image = COALESCE(NULLIF($8, ''), image)
		WHERE id = $1
		RETURNING id, name, description, percentage, maturity_days, is_disabled, color, image
	`,
		input.PackageID, input.Name, input.Description, input.Percentage,
		input.MaturityDays, input.IsDisabled, input.Color, input.Image,
	).Scan(
		&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Percentage,
		&pkg.MaturityDays, &pkg.IsDisabled, &pkg.Color, &pkg.Image,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Package{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Package{}, ErrPackageExists
		}
		return Package{}, err
	}
	return pkg, nil
}

func (s *Store) ListPackages(ctx context.Context, includeDisabled bool) ([]Package, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, percentage, maturity_days, is_disabled, color, image
		FROM packages
		WHERE $1 OR NOT is_disabled
		ORDER BY name
	`, includeDisabled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		var pkg Package
		err := rows.Scan(
			&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Percentage,
			&pkg.MaturityDays, &pkg.IsDisabled, &pkg.Color, &pkg.Image,
		)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func getPackage(ctx context.Context, tx pgx.Tx, id string) (Package, error) {
	var pkg Package
	err := tx.QueryRow(ctx, `
		SELECT id, name, description, percentage, maturity_days, is_disabled, color, image
		FROM packages
		WHERE id = $1
	`, id).Scan(
		&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Percentage,
		&pkg.MaturityDays, &pkg.IsDisabled, &pkg.Color, &pkg.Image,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Package{}, ErrNotFound
		}
		return Package{}, err
	}
	return pkg, nil
}
