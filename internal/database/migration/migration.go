package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinel is the relation created by the last step; its presence means the schema is in place.
const sentinel = "public.uq_chats_pair_target"

const listingColumns = `
  id               UUID          PRIMARY KEY DEFAULT uuid_generate_v4(),
  provider_id      UUID          NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  title            TEXT          NOT NULL,
  description      TEXT          NOT NULL DEFAULT '',
  address          TEXT          NOT NULL DEFAULT '',
  price            NUMERIC(12,2) CHECK (price IS NULL OR price >= 0),
  status           TEXT          NOT NULL DEFAULT 'draft'
                   CHECK (status IN ('draft', 'moderation', 'published', 'hidden', 'cancelled')),
  rejection_reason TEXT          NOT NULL DEFAULT '',
  rating           NUMERIC(3,2)  NOT NULL DEFAULT 0,
  comments_count   INTEGER       NOT NULL DEFAULT 0,
  created_at       TIMESTAMPTZ   NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ   NOT NULL DEFAULT now(),
  published_at     TIMESTAMPTZ,
  search_vector    TSVECTOR      GENERATED ALWAYS AS (
    to_tsvector('russian', coalesce(title, '') || ' ' || coalesce(description, '') || ' ' || coalesce(address, ''))
  ) STORED`

const taxonomyColumns = `
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  parent_id  UUID        REFERENCES %s (id) ON DELETE CASCADE,
  name       TEXT        NOT NULL,
  slug       TEXT        NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK (parent_id IS NULL OR parent_id <> id)`

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  email          TEXT        NOT NULL UNIQUE,
  password_hash  TEXT        NOT NULL,
  name           TEXT        NOT NULL DEFAULT '',
  phone          TEXT        NOT NULL DEFAULT '',
  is_staff       BOOLEAN     NOT NULL DEFAULT false,
  is_active      BOOLEAN     NOT NULL DEFAULT true,
  email_verified BOOLEAN     NOT NULL DEFAULT false,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_categories",
		SQL:  `CREATE TABLE IF NOT EXISTS categories (` + fmt.Sprintf(taxonomyColumns, "categories") + `);`,
	},
	{
		Name: "create_table_types",
		SQL:  `CREATE TABLE IF NOT EXISTS types (` + fmt.Sprintf(taxonomyColumns, "types") + `);`,
	},
	{
		Name: "create_table_services",
		SQL:  `CREATE TABLE IF NOT EXISTS services (` + listingColumns + `);`,
	},
	{
		Name: "create_table_ads",
		SQL:  `CREATE TABLE IF NOT EXISTS ads (` + listingColumns + `);`,
	},
	{
		Name: "create_table_service_categories",
		SQL: `CREATE TABLE IF NOT EXISTS service_categories (
  listing_id  UUID NOT NULL REFERENCES services (id) ON DELETE CASCADE,
  taxonomy_id UUID NOT NULL REFERENCES categories (id) ON DELETE CASCADE,
  PRIMARY KEY (listing_id, taxonomy_id)
);`,
	},
	{
		Name: "create_table_ad_types",
		SQL: `CREATE TABLE IF NOT EXISTS ad_types (
  listing_id  UUID NOT NULL REFERENCES ads (id) ON DELETE CASCADE,
  taxonomy_id UUID NOT NULL REFERENCES types (id) ON DELETE CASCADE,
  PRIMARY KEY (listing_id, taxonomy_id)
);`,
	},
	{
		Name: "create_table_listing_images",
		SQL: `CREATE TABLE IF NOT EXISTS listing_images (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  listing_kind TEXT        NOT NULL CHECK (listing_kind IN ('service', 'ad')),
  listing_id   UUID        NOT NULL,
  object_key   TEXT        NOT NULL UNIQUE,
  content_type TEXT        NOT NULL,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_comments",
		SQL: `CREATE TABLE IF NOT EXISTS comments (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  target_kind TEXT        NOT NULL CHECK (target_kind IN ('service', 'ad')),
  target_id   UUID        NOT NULL,
  author_id   UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  text        TEXT        NOT NULL,
  rating      SMALLINT    NOT NULL CHECK (rating BETWEEN 1 AND 5),
  status      TEXT        NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (author_id, target_kind, target_id)
);`,
	},
	{
		Name: "create_table_favorites",
		SQL: `CREATE TABLE IF NOT EXISTS favorites (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id     UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  target_kind TEXT        NOT NULL CHECK (target_kind IN ('service', 'ad')),
  target_id   UUID        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (user_id, target_kind, target_id)
);`,
	},
	{
		Name: "create_table_notifications",
		SQL: `CREATE TABLE IF NOT EXISTS notifications (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id    UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  kind       TEXT        NOT NULL,
  text       TEXT        NOT NULL,
  link       TEXT        NOT NULL DEFAULT '',
  read_at    TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_chats",
		SQL: `CREATE TABLE IF NOT EXISTS chats (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  first_user_id  UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  second_user_id UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  target_kind    TEXT        CHECK (target_kind IN ('service', 'ad')),
  target_id      UUID,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK (first_user_id < second_user_id)
);`,
	},
	{
		Name: "create_table_messages",
		SQL: `CREATE TABLE IF NOT EXISTS messages (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  chat_id    UUID        NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
  sender_id  UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  text       TEXT        NOT NULL,
  read_at    TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_auth_tokens",
		SQL: `CREATE TABLE IF NOT EXISTS auth_tokens (
  hash       TEXT        PRIMARY KEY,
  user_id    UUID        NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  purpose    TEXT        NOT NULL CHECK (purpose IN ('verify_email', 'password_reset')),
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	indexStep("idx_services_status_created", `ON services (status, created_at DESC)`),
	indexStep("idx_services_provider", `ON services (provider_id)`),
	indexStep("idx_services_search", `ON services USING GIN (search_vector)`),
	indexStep("idx_ads_status_created", `ON ads (status, created_at DESC)`),
	indexStep("idx_ads_provider", `ON ads (provider_id)`),
	indexStep("idx_ads_search", `ON ads USING GIN (search_vector)`),
	indexStep("idx_listing_images_listing", `ON listing_images (listing_kind, listing_id)`),
	indexStep("idx_comments_target", `ON comments (target_kind, target_id, status)`),
	indexStep("idx_favorites_target", `ON favorites (target_kind, target_id)`),
	indexStep("idx_notifications_user", `ON notifications (user_id, created_at DESC)`),
	indexStep("idx_messages_chat_created", `ON messages (chat_id, created_at)`),
	indexStep("idx_auth_tokens_expires", `ON auth_tokens (expires_at)`),
	{
		Name: "create_unique_index_chats_pair_target",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS uq_chats_pair_target ON chats (
  first_user_id, second_user_id, coalesce(target_kind, ''), coalesce(target_id, '00000000-0000-0000-0000-000000000000')
);`,
	},
}

// EnsureMigrated checks the sentinel table and applies the schema when it is missing.
// Every step is idempotent, so a partially applied schema is completed on the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('" + sentinel + "') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel relation: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("reason", "schema already exists"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"), zap.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// StepNames lists the migration steps in execution order.
func StepNames() []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return names
}

func indexStep(name, def string) migrationStep {
	return migrationStep{
		Name: "create_index_" + strings.TrimPrefix(name, "idx_"),
		SQL:  "CREATE INDEX IF NOT EXISTS " + name + " " + def + ";",
	}
}
