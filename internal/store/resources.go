package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
)

const resourceColumns = `id, kind, data, created_at, updated_at, version`

func scanResource(row interface{ Scan(...any) error }, r *models.Resource) error {
	var raw []byte
	err := row.Scan(&r.ID, &r.Kind, &raw, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		return err
	}
	r.Data = map[string]any{}
	if err := json.Unmarshal(raw, &r.Data); err != nil {
		return fmt.Errorf("decode %s %d: %w", r.Kind, r.ID, err)
	}
	return nil
}

type dbtx interface {
	queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// writeResource runs write directly, except for employee documents: those
// run in a transaction that also aligns the role of the customer account
// sharing the document's e-mail. removed demotes that account.
func writeResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, removed bool, write func(q dbtx) (*models.Resource, error)) (*models.Resource, error) {
	if kind != models.KindEmployees {
		return write(db)
	}

	var resource *models.Resource
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		resource, err = write(tx)
		if err != nil {
			return err
		}

		email, role := models.EmployeeAccess(resource.Data)
		if removed {
			role = models.RoleStudent
		}
		return syncCustomerRole(ctx, tx, email, role)
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}

func CreateResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, data map[string]any) (*models.Resource, error) {
	raw, err := json.Marshal(models.StripReserved(data))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	query := `
		INSERT INTO admin_resources (kind, data, created_at, updated_at, version)
		VALUES ($1, $2, NOW(), NOW(), 1)
		RETURNING ` + resourceColumns

	return writeResource(ctx, db, kind, false, func(q dbtx) (*models.Resource, error) {
		resource := &models.Resource{}
		if err := scanResource(q.QueryRowContext(ctx, query, kind, string(raw)), resource); err != nil {
			return nil, fmt.Errorf("create %s: %w", kind, err)
		}
		return resource, nil
	})
}

func GetResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, id int64) (*models.Resource, error) {
	resource := &models.Resource{}

	query := `SELECT ` + resourceColumns + ` FROM admin_resources WHERE kind = $1 AND id = $2`

	if err := scanResource(db.QueryRowContext(ctx, query, kind, id), resource); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrResourceNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}

	return resource, nil
}

// ListResources returns every document of kind. A non-empty activeField
// keeps only documents where that boolean field is true.
func ListResources(ctx context.Context, db *sql.DB, kind models.ResourceKind, activeField string) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM admin_resources WHERE kind = $1`
	args := []any{kind}
	if activeField != "" {
		query += ` AND (data->>$2)::boolean IS TRUE`
		args = append(args, activeField)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	resources := []models.Resource{}
	for rows.Next() {
		var resource models.Resource
		if err := scanResource(rows, &resource); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		resources = append(resources, resource)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return resources, nil
}

// UpdateResource replaces the document. expectedVersion, when set, guards
// against overwriting a concurrent edit.
func UpdateResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, id int64, data map[string]any, expectedVersion *int) (*models.Resource, error) {
	raw, err := json.Marshal(models.StripReserved(data))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	query := `
		UPDATE admin_resources
		SET data = $1, updated_at = NOW(), version = version + 1
		WHERE kind = $2 AND id = $3 AND ($4::int IS NULL OR version = $4)
		RETURNING ` + resourceColumns

	return writeResource(ctx, db, kind, false, func(q dbtx) (*models.Resource, error) {
		resource := &models.Resource{}
		if err := scanResource(q.QueryRowContext(ctx, query, string(raw), kind, id, expectedVersion), resource); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if expectedVersion == nil {
					return nil, database.ErrResourceNotFound
				}
				return nil, missingOrStale(ctx, db, "admin_resources", id, database.ErrResourceNotFound)
			}
			return nil, fmt.Errorf("update %s: %w", kind, err)
		}
		return resource, nil
	})
}

func DeleteResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, id int64) error {
	query := `DELETE FROM admin_resources WHERE kind = $1 AND id = $2 RETURNING ` + resourceColumns

	_, err := writeResource(ctx, db, kind, true, func(q dbtx) (*models.Resource, error) {
		resource := &models.Resource{}
		if err := scanResource(q.QueryRowContext(ctx, query, kind, id), resource); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, database.ErrResourceNotFound
			}
			return nil, fmt.Errorf("delete %s: %w", kind, err)
		}
		return resource, nil
	})
	return err
}

// ToggleResource flips one of the boolean fields the kind declares. A
// missing field counts as false.
func ToggleResource(ctx context.Context, db *sql.DB, kind models.ResourceKind, id int64, field string) (*models.Resource, error) {
	if !kind.CanToggle(field) {
		return nil, fmt.Errorf("%w: %s.%s", database.ErrUnknownToggle, kind, field)
	}

	query := `
		UPDATE admin_resources
		SET data = jsonb_set(data, $1::text[], to_jsonb(NOT COALESCE((data->>$2)::boolean, false)), true),
		    updated_at = NOW(),
		    version = version + 1
		WHERE kind = $3 AND id = $4
		RETURNING ` + resourceColumns

	return writeResource(ctx, db, kind, false, func(q dbtx) (*models.Resource, error) {
		resource := &models.Resource{}
		err := scanResource(q.QueryRowContext(ctx, query, pq.Array([]string{field}), field, kind, id), resource)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, database.ErrResourceNotFound
			}
			return nil, fmt.Errorf("toggle %s.%s: %w", kind, field, err)
		}
		return resource, nil
	})
}
