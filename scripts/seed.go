package main

import (
	"context"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
)

// shadeLines lists the composite shades offered by each seeded product line
var shadeLines = []struct {
	manufacturer string
	productLine  string
	shades       map[entities.ShadeType][]string
}{
	{
		manufacturer: "FGM",
		productLine:  "Vittra APS",
		shades: map[entities.ShadeType][]string{
			entities.ShadeTypeOpaque:    {"OA1", "OA2", "OA3", "OA3.5"},
			entities.ShadeTypeUniversal: {"A1", "A2", "A3", "A3.5", "B1", "B2", "EA1", "EA2"},
			entities.ShadeTypeEnamel:    {"A1E", "A2E", "WE", "TRANS"},
		},
	},
	{
		manufacturer: "3M",
		productLine:  "Filtek Z350 XT",
		shades: map[entities.ShadeType][]string{
			entities.ShadeTypeOpaque:    {"A1D", "A2D", "A3D", "A3.5D", "B1D", "WB"},
			entities.ShadeTypeUniversal: {"A1B", "A2B", "A3B", "A3.5B", "B1B", "B2B", "XW"},
			entities.ShadeTypeEnamel:    {"A1E", "A2E", "A3E", "B1E", "CT", "GT", "WE", "XWE"},
		},
	},
	{
		manufacturer: "Ivoclar",
		productLine:  "IPS Empress Direct",
		shades: map[entities.ShadeType][]string{
			entities.ShadeTypeOpaque:    {"A1 Dentin", "A2 Dentin", "A3 Dentin", "BL-XL Dentin"},
			entities.ShadeTypeUniversal: {"A1", "A2", "A3", "B1"},
			entities.ShadeTypeEnamel:    {"A1 Enamel", "A2 Enamel", "Trans 20", "Trans 30", "Opal", "BL-L Enamel"},
		},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("seed", cfg.Env, cfg.LogLevel)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()
	db := goqu.New("postgres", pgClient.DB())

	schemaPath := os.Getenv("SCHEMA_PATH")
	if schemaPath == "" {
		schemaPath = "migrations/0001_protocol_engine.sql"
	}
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", schemaPath).Msg("Failed to read schema")
	}
	if _, err := pgClient.DB().ExecContext(ctx, string(schema)); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Str("path", schemaPath).Msg("Schema applied")

	if os.Getenv("RESET_DB") == "true" {
		log.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				evaluations,
				session_pending_teeth,
				usage_rate_limits,
				credit_ledger,
				credit_refund_failures,
				user_credits,
				resin_shade_catalog
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	// 1. Seed the shade catalog
	var rows []interface{}
	for _, line := range shadeLines {
		for shadeType, shades := range line.shades {
			for _, shade := range shades {
				rows = append(rows, goqu.Record{
					"manufacturer": line.manufacturer,
					"product_line": line.productLine,
					"shade":        shade,
					"type":         string(shadeType),
				})
			}
		}
	}
	query, args, err := db.Insert("resin_shade_catalog").Prepared(true).Rows(rows...).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build shade catalog insert")
	}
	result, err := pgClient.DB().ExecContext(ctx, query, args...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed shade catalog")
	}
	inserted, _ := result.RowsAffected()
	log.Info().Int64("shades", inserted).Msg("Shade catalog seeded")

	// 2. Grant starting credits to a development user
	userID := os.Getenv("SEED_USER_ID")
	if userID == "" {
		userID = uuid.NewString()
	}
	query, args, err = db.Insert("user_credits").Prepared(true).
		Rows(goqu.Record{"user_id": userID, "balance": 50, "updated_at": time.Now()}).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{"balance": goqu.L("EXCLUDED.balance"), "updated_at": goqu.L("NOW()")})).
		ToSQL()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build credits insert")
	}
	if _, err := pgClient.DB().ExecContext(ctx, query, args...); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed credits")
	}
	log.Info().Str("user_id", userID).Int("balance", 50).Msg("Development user credited")
}
