// Command migrate applies the SQL migrations in migrations/ against the
// pricing database.
//
// Usage:
//
//	migrate [-database URL] [-path DIR] [up|down|version|force N]
//
// The database URL falls back to DATABASE_URL (a local .env is honored).
// The default command is up.
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	databaseURL := flag.String("database", "", "Postgres URL (defaults to DATABASE_URL)")
	dir := flag.String("path", "migrations", "directory containing the migration files")
	flag.Parse()

	_ = godotenv.Load()

	url := *databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		log.Fatal("no database URL: pass -database or set DATABASE_URL")
	}

	m, err := migrate.New("file://"+*dir, url)
	if err != nil {
		log.Fatalf("open migrations in %s: %v", *dir, err)
	}
	defer m.Close()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("schema already up to date")
			return
		}
		if err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		log.Println("schema migrated")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("roll back migrations: %v", err)
		}
		log.Println("schema rolled back")

	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("read schema version: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", v, dirty)

	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force needs a version: migrate force <version>")
		}
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("bad version %q: %v", flag.Arg(1), err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("force schema version: %v", err)
		}
		log.Printf("schema version forced to %d", v)

	default:
		log.Fatalf("unknown command %q (up, down, version, force)", cmd)
	}
}
