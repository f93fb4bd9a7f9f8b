// Package main provides a CLI tool for creating the schema and seeding the
// database with roles, an administrator account and optional demo data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/storage/postgres"
	"fretops/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := createSchema(ctx, pool); err != nil {
		log.Fatalw("failed to create schema", "error", err)
	}
	log.Info("schema ready")

	roleIDs, err := seedRoles(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed roles", "error", err)
	}

	adminID, err := seedAdminUser(ctx, pool, log, roleIDs[appctx.RoleAdministrateur])
	if err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log, roleIDs, adminID); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT true,
		code_client TEXT NOT NULL DEFAULT '',
		type_operation_scope TEXT,
		failed_login_attempts INT NOT NULL DEFAULT 0,
		locked_until TIMESTAMPTZ,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version INT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		granted_by UUID REFERENCES users(id),
		granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked_at TIMESTAMPTZ,
		revoked_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS operations (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		reserver_par TEXT,
		type_operation TEXT NOT NULL,
		priorite TEXT NOT NULL DEFAULT 'normale',
		etat INT NOT NULL DEFAULT 0,
		regime TEXT NOT NULL DEFAULT '',
		bureau TEXT NOT NULL DEFAULT '',
		code_dossier TEXT,
		tr BOOLEAN NOT NULL DEFAULT false,
		debours BOOLEAN NOT NULL DEFAULT false,
		confirmation_dedouanement BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version INT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operations_user ON operations(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_operations_code_dossier ON operations(code_dossier) WHERE code_dossier IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_operations_reserver_par ON operations(reserver_par) WHERE reserver_par IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		operation_id UUID NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		nom TEXT NOT NULL,
		chemin TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		taille_octet BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS commentaires (
		id UUID PRIMARY KEY,
		operation_id UUID NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		contenu TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS historiques (
		id UUID PRIMARY KEY,
		operation_id UUID NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		changes BYTEA,
		changes_compressed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_historiques_operation ON historiques(operation_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS factures (
		id UUID PRIMARY KEY,
		numero TEXT NOT NULL UNIQUE,
		code_client TEXT NOT NULL,
		code_dossier TEXT NOT NULL,
		designation TEXT NOT NULL DEFAULT '',
		montant NUMERIC(14,2) NOT NULL,
		montant_paye NUMERIC(14,2) NOT NULL DEFAULT 0,
		etat_payement TEXT NOT NULL DEFAULT 'impayee',
		date_emission TIMESTAMPTZ NOT NULL,
		date_echeance TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version INT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_factures_code_dossier ON factures(code_dossier)`,
	`CREATE INDEX IF NOT EXISTS idx_factures_code_client ON factures(code_client)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		operation_id UUID NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		lu BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, lu, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS sys_outbox (
		id UUID PRIMARY KEY,
		operation_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		next_retry_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON sys_outbox(status, created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS sys_outbox_dlq (
		id UUID,
		operation_id UUID,
		event_type TEXT,
		payload JSONB,
		status TEXT,
		retry_count INT,
		last_error TEXT,
		next_retry_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ,
		published_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ
	)`,
}

func createSchema(ctx context.Context, pool *postgres.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func seedRoles(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (map[string]id.ID, error) {
	roles := []struct {
		code string
		name string
	}{
		{appctx.RoleClient, "Client"},
		{appctx.RoleAgent, "Agent en douane"},
		{appctx.RoleAdministrateur, "Administrateur"},
	}

	ids := make(map[string]id.ID, len(roles))
	for _, r := range roles {
		var roleID id.ID
		err := pool.Pool.QueryRow(ctx, `SELECT id FROM roles WHERE code = $1`, r.code).Scan(&roleID)
		if err == nil {
			ids[r.code] = roleID
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check role %s: %w", r.code, err)
		}

		roleID = id.New()
		_, err = pool.Pool.Exec(ctx,
			`INSERT INTO roles (id, code, name) VALUES ($1, $2, $3)`,
			roleID, r.code, r.name)
		if err != nil {
			return nil, fmt.Errorf("insert role %s: %w", r.code, err)
		}
		ids[r.code] = roleID
		log.Infow("role created", "code", r.code)
	}
	return ids, nil
}

func seedAdminUser(ctx context.Context, pool *postgres.Pool, log *logger.Logger, adminRoleID id.ID) (id.ID, error) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@fretops.local"
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	var existingID id.ID
	err := pool.Pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, adminEmail).Scan(&existingID)
	if err == nil {
		log.Infow("admin user already exists", "email", adminEmail, "user_id", existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check admin exists: %w", err)
	}

	userID, err := createUser(ctx, pool, adminEmail, adminPassword, "System", "Admin", "", nil)
	if err != nil {
		return id.Nil(), err
	}
	if err := assignRole(ctx, pool, userID, adminRoleID); err != nil {
		return id.Nil(), err
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", userID)
	return userID, nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger, roleIDs map[string]id.ID, adminID id.ID) error {
	importScope := string(operation.TypeImport)

	clientID, err := createUser(ctx, pool, "client@demo.fretops.local", "Client123!", "Rachid", "El Fassi", "CL-0042", nil)
	if err != nil {
		return err
	}
	if err := assignRole(ctx, pool, clientID, roleIDs[appctx.RoleClient]); err != nil {
		return err
	}

	agentID, err := createUser(ctx, pool, "agent@demo.fretops.local", "Agent123!", "Karim", "Alaoui", "", &importScope)
	if err != nil {
		return err
	}
	if err := assignRole(ctx, pool, agentID, roleIDs[appctx.RoleAgent]); err != nil {
		return err
	}

	// One reserved operation with a dossier code, one fresh intake.
	codeDossier := "DOS-2026-0001"
	opReserved := operation.New(clientID.String(), operation.TypeImport)
	opReserved.Bureau = "Casablanca Port"
	opReserved.Regime = "10"
	opReserved.Etat = operation.EtatEnCours
	opReserved.SetReserverPar(agentID.String())
	opReserved.SetCodeDossier(codeDossier)

	opIntake := operation.New(clientID.String(), operation.TypeExport)
	opIntake.Bureau = "Tanger Med"

	for _, op := range []*operation.Operation{opReserved, opIntake} {
		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO operations (
				id, user_id, reserver_par, type_operation, priorite, etat,
				regime, bureau, code_dossier, tr, debours, confirmation_dedouanement,
				created_at, updated_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO NOTHING
		`, op.ID, op.UserID, op.ReserverPar, op.Type, op.Priorite, op.Etat,
			op.Regime, op.Bureau, op.CodeDossier, op.TR, op.Debours,
			op.ConfirmationDedouanement, op.CreatedAt, op.UpdatedAt, op.Version)
		if err != nil {
			return fmt.Errorf("insert demo operation: %w", err)
		}
	}

	f := facture.New("FAC-2026-0001", "CL-0042", codeDossier,
		decimal.NewFromInt(12500), time.Now().AddDate(0, 0, -7))
	f.Designation = "Dédouanement import conteneur 40ft"
	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO factures (
			id, numero, code_client, code_dossier, designation, montant,
			montant_paye, etat_payement, date_emission, created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (numero) DO NOTHING
	`, f.ID, f.Numero, f.CodeClient, f.CodeDossier, f.Designation, f.Montant,
		f.MontantPaye, f.EtatPayement, f.DateEmission, f.CreatedAt, f.UpdatedAt, f.Version)
	if err != nil {
		return fmt.Errorf("insert demo facture: %w", err)
	}

	log.Infow("demo data seeded",
		"client_id", clientID, "agent_id", agentID, "code_dossier", codeDossier)
	return nil
}

func createUser(ctx context.Context, pool *postgres.Pool, email, password, firstName, lastName, codeClient string, scope *string) (id.ID, error) {
	var existingID id.ID
	err := pool.Pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check user exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return id.Nil(), fmt.Errorf("hash password: %w", err)
	}

	userID := id.New()
	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, code_client, type_operation_scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, email, string(passwordHash), firstName, lastName, codeClient, scope)
	if err != nil {
		return id.Nil(), fmt.Errorf("insert user %s: %w", email, err)
	}
	return userID, nil
}

func assignRole(ctx context.Context, pool *postgres.Pool, userID, roleID id.ID) error {
	_, err := pool.Pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}
