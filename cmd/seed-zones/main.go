package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/vigilia/guard-backend/internal/zones"
)

// CLI flags
var (
	filePath    = flag.String("file", "", "Path to the zone seed YAML (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *filePath == "" {
		fatalf("--file is required")
	}

	f, err := loadSeedFile(*filePath)
	if err != nil {
		fatalf("seed file error: %v", err)
	}

	p, err := buildPlan(f)
	if err != nil {
		fatalf("seed file validation failed:\n%v", err)
	}

	fmt.Printf("Loaded %d zones and %d assignments from %s\n", len(p.Zones), len(p.Assignments), *filePath)

	if *dryRun {
		printPlan(p)
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	ids := make(map[string]uuid.UUID, len(p.Zones))
	for _, z := range p.Zones {
		id, err := upsertZone(ctx, tx, z)
		if err != nil {
			fatalf("%v", err)
		}
		ids[z.NombreClave] = id
	}
	fmt.Printf("Upserted %d zones\n", len(ids))

	inserted := 0
	for _, pa := range p.Assignments {
		a := pa.Assignment
		a.ZonaID = ids[pa.ZoneKey]
		ok, err := insertAssignment(ctx, tx, a)
		if err != nil {
			fatalf("%v", err)
		}
		if ok {
			inserted++
		}
	}
	fmt.Printf("Inserted %d assignments (%d already present)\n", inserted, len(p.Assignments)-inserted)

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete.")
}

// upsertZone matches existing rows on the normalized name and returns the row id.
func upsertZone(ctx context.Context, tx *sql.Tx, z zones.Zone) (uuid.UUID, error) {
	q := `INSERT INTO geofence.zonas (id, nombre, nombre_clave, descripcion, tipo, coordenadas, activo, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	      ON CONFLICT (nombre_clave) DO UPDATE SET
	        nombre = EXCLUDED.nombre,
	        descripcion = EXCLUDED.descripcion,
	        tipo = EXCLUDED.tipo,
	        coordenadas = EXCLUDED.coordenadas,
	        activo = EXCLUDED.activo,
	        updated_at = now()
	      RETURNING id`

	var id uuid.UUID
	err := tx.QueryRowContext(ctx, q,
		uuid.New(), z.Nombre, z.NombreClave, z.Descripcion, string(z.Tipo), z.Coordenadas, z.Activo,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert zone '%s': %w", z.Nombre, err)
	}
	return id, nil
}

// insertAssignment skips an assignment that already exists for the same
// guard, zone and start date. It reports whether a row was written.
func insertAssignment(ctx context.Context, tx *sql.Tx, a zones.Assignment) (bool, error) {
	var fin interface{}
	if a.FechaFin != nil {
		fin = a.FechaFin.String()
	}

	q := `INSERT INTO geofence.asignaciones_zona (id, guardia_id, zona_id, fecha_inicio, fecha_fin, activo, created_at, updated_at)
	      SELECT $1, $2, $3, $4::date, $5::date, $6, now(), now()
	      WHERE NOT EXISTS (
	        SELECT 1 FROM geofence.asignaciones_zona
	        WHERE guardia_id = $2 AND zona_id = $3 AND fecha_inicio = $4::date
	      )`

	res, err := tx.ExecContext(ctx, q, uuid.New(), a.GuardiaID, a.ZonaID, a.FechaInicio.String(), fin, a.Activo)
	if err != nil {
		return false, fmt.Errorf("insert assignment %s -> %s: %w", a.GuardiaID, a.ZonaID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func printPlan(p plan) {
	for _, z := range p.Zones {
		area := 0.0
		if shape, err := z.Shape(); err == nil {
			area = shape.AreaSquareMeters()
		}
		fmt.Printf("  zona %-30s %-9s %10.0f m2 activo=%v\n", z.Nombre, z.Tipo, area, z.Activo)
	}
	for _, pa := range p.Assignments {
		a := pa.Assignment
		fin := "abierta"
		if a.FechaFin != nil {
			fin = a.FechaFin.String()
		}
		fmt.Printf("  asignacion %s -> %s [%s, %s]\n", a.GuardiaID, pa.ZoneKey, a.FechaInicio, fin)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(1)
}
