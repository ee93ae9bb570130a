package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
	"gitlab.com/dirk.krummacker/contacts-api/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// Usage example on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go -config=../../config/local.yaml -file=../../scripts/database.sql
func main() {
	configPath := flag.String("config", "config/local.yaml", "the configuration file")
	filePtr := flag.String("file", "database.sql", "the sql file to execute")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not create logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := migrate(context.Background(), cfg.Database, *filePtr, log); err != nil {
		log.Fatal("migration failed", zap.String("file", *filePtr), zap.Error(err))
	}
}

func migrate(ctx context.Context, cfg repository.Config, path string, log *zap.Logger) error {
	readFile, err := os.Open(path) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()

	statements, err := splitStatements(readFile)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}

	sqlDB, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	db := sqlx.NewDb(sqlDB, "mysql")
	defer db.Close()

	for i, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("statement %d failed: %w", i+1, err)
		}
	}
	log.Info("migration done", zap.String("file", path), zap.Int("statements", len(statements)))
	return nil
}

// splitStatements reads SQL statements that end with a semicolon at the end of a line. Lines
// starting with "--" are comments and skipped.
func splitStatements(r io.Reader) ([]string, error) {
	var statements []string
	fileScanner := bufio.NewScanner(r)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := strings.TrimSpace(fileScanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSpace(builder.String()))
			builder = strings.Builder{}
		}
	}
	if err := fileScanner.Err(); err != nil {
		return nil, err
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements, nil
}
