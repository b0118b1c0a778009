package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

const applicationName = "raceweek-stats-migration"

var (
	logLevel = logging.ParseLevel(os.Getenv("APP_LOG_LEVEL"))
	logger   = logging.NewJSON(logLevel, applicationName)

	errUsage = errors.New("usage")
)

// migrator is the part of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

type command struct {
	name    string
	args    string
	example string
	run     func(m migrator, args []string, out io.Writer) error
}

var commands = []command{
	{name: "up", example: "up", run: runUp},
	{name: "down", args: "[steps]", example: "down 1", run: runDown},
	{name: "version", example: "version", run: runVersion},
	{name: "force", args: "<version>", example: "force 3", run: runForce},
	{name: "goto", args: "<version>", example: "goto 2", run: runGoto},
}

func main() {
	defer func() { _ = logger.Sync() }()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		logger.Error("migration command failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return errors.New("DB_URL is required")
	}
	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		return err
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsDir)
	m, err := migrate.New(sourceURL, withApplicationName(dbURL, applicationName))
	if err != nil {
		return fmt.Errorf("create migrator source=%s: %w", sourceURL, err)
	}
	m.Log = migrateLogger{verbose: logLevel == logging.LevelDebug}
	defer closeMigrator(m)

	return cmd.run(m, args[1:], out)
}

func lookupCommand(name string) (command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "migrate" {
		name = "goto"
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func runUp(m migrator, _ []string, _ io.Writer) error {
	if err := ignoreNoChange(m.Up()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func runDown(m migrator, args []string, _ io.Writer) error {
	steps, err := parseSteps(args)
	if err != nil {
		return err
	}
	if err := ignoreNoChange(m.Steps(-steps)); err != nil {
		return fmt.Errorf("roll back %d steps: %w", steps, err)
	}
	logger.Info("migrations rolled back", "steps", steps)
	return nil
}

func runVersion(m migrator, _ []string, out io.Writer) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		_, _ = fmt.Fprintln(out, "version: none")
		_, _ = fmt.Fprintln(out, "dirty: false")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	_, _ = fmt.Fprintf(out, "version: %d\ndirty: %t\n", version, dirty)
	return nil
}

func runForce(m migrator, args []string, _ io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: force requires a version argument", errUsage)
	}
	version, err := parseVersion(args[0])
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	logger.Info("forced migration version", "version", version)
	return nil
}

func runGoto(m migrator, args []string, _ io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: goto requires a target version argument", errUsage)
	}
	target, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	if err := ignoreNoChange(m.Migrate(target)); err != nil {
		return fmt.Errorf("migrate to version %d: %w", target, err)
	}
	logger.Info("migrated to version", "version", target)
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration changes")
		return nil
	}
	return err
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("version must be >= 0")
	}
	return value, nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("close migration db", "error", dbErr)
	}
}

// migrateLogger adapts the structured logger to migrate.Logger.
type migrateLogger struct {
	verbose bool
}

func (l migrateLogger) Printf(format string, v ...any) {
	logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.verbose
}

func resolveMigrationsDir() (string, error) {
	for _, candidate := range []string{
		os.Getenv("MIGRATIONS_DIR"),
		os.Getenv("MIGRATIONS_PATH"),
		"./db/migrations",
		"/app/db/migrations",
	} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", errors.New("migration directory not found (checked MIGRATIONS_DIR, MIGRATIONS_PATH, ./db/migrations, /app/db/migrations)")
}

// withApplicationName tags migration connections in pg_stat_activity.
func withApplicationName(raw, name string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return raw
	}
	query := parsed.Query()
	if query.Get("application_name") == "" {
		query.Set("application_name", name)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func printUsage(w io.Writer) {
	bin := filepath.Base(os.Args[0])
	names := make([]string, 0, len(commands))
	for _, cmd := range commands {
		names = append(names, cmd.name)
	}
	_, _ = fmt.Fprintf(w, "usage: %s <%s> [args]\n", bin, strings.Join(names, "|"))
	_, _ = fmt.Fprintln(w, "examples:")
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(w, "  %s %s\n", bin, cmd.example)
	}
}
