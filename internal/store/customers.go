package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
)

type NewCustomer struct {
	Email        string
	Name         string
	Phone        string
	Role         models.Role
	PasswordHash string
}

const customerColumns = `id, email, name, phone, role, password_hash, loyalty_points, created_at, updated_at, version`

func scanCustomer(row interface{ Scan(...any) error }, c *models.Customer) error {
	return row.Scan(
		&c.ID,
		&c.Email,
		&c.Name,
		&c.Phone,
		&c.Role,
		&c.PasswordHash,
		&c.LoyaltyPoints,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
}

func CreateCustomer(ctx context.Context, db *sql.DB, in NewCustomer) (*models.Customer, error) {
	if in.Role == "" {
		in.Role = models.RoleStudent
	}

	customer := &models.Customer{}

	// An active employee document for the same e-mail overrides the
	// requested role.
	query := `
		INSERT INTO customers (email, name, phone, role, password_hash, loyalty_points, created_at, updated_at, version)
		VALUES ($1::text, $2, $3, COALESCE((
			SELECT r.data->>'role'
			FROM admin_resources r
			WHERE r.kind = 'employes'
			  AND lower(trim(r.data->>'email')) = $1::text
			  AND r.data->>'role' IN ('employe', 'admin')
			  AND COALESCE((r.data->>'actif')::boolean, true)
			ORDER BY r.id
			LIMIT 1
		), $4::text), $5, 0, NOW(), NOW(), 1)
		RETURNING ` + customerColumns

	err := scanCustomer(db.QueryRowContext(ctx, query,
		strings.ToLower(strings.TrimSpace(in.Email)), in.Name, in.Phone, in.Role, in.PasswordHash), customer)
	if err != nil {
		if database.IsUniqueViolation(err, "customers_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

// EnsureAdmin makes sure an admin account exists for in.Email. A new
// account is created with in.PasswordHash; an existing one is promoted and
// keeps its password.
func EnsureAdmin(ctx context.Context, db *sql.DB, in NewCustomer) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `
		INSERT INTO customers (email, name, phone, role, password_hash, loyalty_points, created_at, updated_at, version)
		VALUES ($1, $2, $3, 'admin', $4, 0, NOW(), NOW(), 1)
		ON CONFLICT (email) DO UPDATE
		SET role = 'admin', updated_at = NOW(), version = customers.version + 1
		WHERE customers.role <> 'admin'
		RETURNING ` + customerColumns

	email := strings.ToLower(strings.TrimSpace(in.Email))
	err := scanCustomer(db.QueryRowContext(ctx, query, email, in.Name, in.Phone, in.PasswordHash), customer)
	if errors.Is(err, sql.ErrNoRows) {
		// already an admin
		return GetCustomerByEmail(ctx, db, email)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	return customer, nil
}

// syncCustomerRole sets the role of the account registered under email, if
// there is one.
func syncCustomerRole(ctx context.Context, q dbtx, email string, role models.Role) error {
	if email == "" {
		return nil
	}

	_, err := q.ExecContext(ctx,
		`UPDATE customers
		 SET role = $1, updated_at = NOW(), version = version + 1
		 WHERE email = $2 AND role <> $1`,
		role, email)
	if err != nil {
		return fmt.Errorf("sync customer role: %w", err)
	}
	return nil
}

func GetCustomer(ctx context.Context, db *sql.DB, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	if err := scanCustomer(db.QueryRowContext(ctx, query, id), customer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

func GetCustomerByEmail(ctx context.Context, db *sql.DB, email string) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE email = $1`

	if err := scanCustomer(db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))), customer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by email: %w", err)
	}

	return customer, nil
}

func creditLoyaltyPoints(ctx context.Context, tx *sql.Tx, customerID int64, points int) error {
	if points <= 0 {
		return nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE customers
		 SET loyalty_points = loyalty_points + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		points, customerID)
	if err != nil {
		return fmt.Errorf("credit loyalty points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCustomerNotFound
	}

	return nil
}
