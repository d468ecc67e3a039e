package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mealdesk/api/internal/config"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/logger"
	"github.com/mealdesk/api/internal/ruleset"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	kitchenName  = "Central Kitchen"
	customerName = "Demo Company"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Super admin email address")
	password := flag.String("password", "", "Super admin password")
	name := flag.String("name", "", "Super admin full name")
	rulesFile := flag.String("rules", "config/booking_rules.yaml", "Booking rules YAML file")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	// Fall back to environment variables, then defaults
	*email = firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "admin@mealdesk.local")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Mealdesk Admin")
	*password = firstNonEmpty(*password, os.Getenv("SEED_PASSWORD"))
	if *password == "" {
		*password = "password123"
		log.Warn("using default password 'password123', change it immediately in production")
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Kitchen, customer and admin are created together or not at all.
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal("failed to begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	kitchenID, err := seedKitchen(ctx, tx)
	if err != nil {
		log.Fatal("failed to seed kitchen", zap.Error(err))
	}
	customerID, err := seedCustomer(ctx, tx, kitchenID)
	if err != nil {
		log.Fatal("failed to seed customer", zap.Error(err))
	}
	userID, err := seedSuperAdmin(ctx, tx, *email, *password, *name)
	if err != nil {
		log.Fatal("failed to seed super admin", zap.Error(err))
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatal("failed to commit", zap.Error(err))
	}

	rules, err := ruleset.LoadFile(*rulesFile)
	if err != nil {
		log.Fatal("failed to load booking rules", zap.Error(err))
	}
	svc := ruleset.NewService(pool, func(db database.DBTX) ruleset.WriteStore {
		return database.New(db)
	}, nil)
	if err := svc.ReplaceAll(ctx, rules); err != nil {
		log.Fatal("failed to seed booking rules", zap.Error(err))
	}

	log.Info("seed completed",
		zap.String("kitchen_id", kitchenID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("super_admin_id", userID.String()),
		zap.Int("booking_rules", len(rules)),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// seedKitchen creates the initial kitchen if it doesn't exist.
func seedKitchen(ctx context.Context, tx pgx.Tx) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM kitchens WHERE name = $1 LIMIT 1`, kitchenName).Scan(&existingID)
	if err == nil {
		logger.L().Info("kitchen already exists, skipping", zap.String("id", existingID.String()))
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check kitchen: %w", err)
	}

	k, err := database.New(tx).CreateKitchen(ctx, kitchenName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert kitchen: %w", err)
	}
	return k.ID, nil
}

// seedCustomer creates a demo customer served by kitchenID.
func seedCustomer(ctx context.Context, tx pgx.Tx, kitchenID uuid.UUID) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM customers WHERE name = $1 AND kitchen_id = $2 LIMIT 1`, customerName, kitchenID).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check customer: %w", err)
	}

	c, err := database.New(tx).CreateCustomer(ctx, database.CreateCustomerParams{KitchenID: kitchenID, Name: customerName})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert customer: %w", err)
	}
	return c.ID, nil
}

// seedSuperAdmin creates the super admin user if it doesn't exist.
func seedSuperAdmin(ctx context.Context, tx pgx.Tx, email, password, fullName string) (uuid.UUID, error) {
	q := database.New(tx)
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		logger.L().Info("user already exists, skipping", zap.String("email", email))
		return existing.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := q.CreateUser(ctx, database.CreateUserParams{
		CustomerID:     pgtype.UUID{},
		KitchenID:      pgtype.UUID{},
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           enum.UserRoleSuperAdmin,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}
