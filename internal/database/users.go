package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, customer_id, kitchen_id, email, hashed_password, full_name, role, is_active, created_at`

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.CustomerID,
		&u.KitchenID,
		&u.Email,
		&u.HashedPassword,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
	)
	return u, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1) AND is_active`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (customer_id, kitchen_id, email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email) DO UPDATE
SET hashed_password = EXCLUDED.hashed_password,
    full_name = EXCLUDED.full_name
RETURNING ` + userColumns

type CreateUserParams struct {
	CustomerID     pgtype.UUID
	KitchenID      pgtype.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

// CreateUser inserts a user, refreshing name and password if the email is
// already taken.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.CustomerID,
		arg.KitchenID,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
	)
	return scanUser(row)
}

const createKitchen = `-- name: CreateKitchen :one
INSERT INTO kitchens (name)
VALUES ($1)
RETURNING id, name, created_at`

func (q *Queries) CreateKitchen(ctx context.Context, name string) (Kitchen, error) {
	var k Kitchen
	err := q.db.QueryRow(ctx, createKitchen, name).Scan(&k.ID, &k.Name, &k.CreatedAt)
	return k, err
}

const createCustomer = `-- name: CreateCustomer :one
INSERT INTO customers (kitchen_id, name)
VALUES ($1, $2)
RETURNING id, kitchen_id, name, created_at`

type CreateCustomerParams struct {
	KitchenID uuid.UUID
	Name      string
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, createCustomer, arg.KitchenID, arg.Name).Scan(&c.ID, &c.KitchenID, &c.Name, &c.CreatedAt)
	return c, err
}

const getCustomer = `-- name: GetCustomer :one
SELECT id, kitchen_id, name, created_at
FROM customers
WHERE id = $1`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, getCustomer, id).Scan(&c.ID, &c.KitchenID, &c.Name, &c.CreatedAt)
	return c, err
}
