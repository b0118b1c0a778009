package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{name: "default one step", args: nil, want: 1},
		{name: "explicit", args: []string{" 3 "}, want: 3},
		{name: "zero", args: []string{"0"}, wantErr: true},
		{name: "not a number", args: []string{"all"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSteps(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tt.args)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("parseSteps(%v)=%d,%v want %d", tt.args, got, err, tt.want)
			}
		})
	}
}

func TestParseVersionAndTarget(t *testing.T) {
	if v, err := parseVersion("2"); err != nil || v != 2 {
		t.Fatalf("parseVersion(2)=%d,%v", v, err)
	}
	if _, err := parseVersion("-1"); err == nil {
		t.Fatalf("expected negative version to be rejected")
	}
	if v, err := parseTarget(" 3 "); err != nil || v != 3 {
		t.Fatalf("parseTarget(3)=%d,%v", v, err)
	}
	if _, err := parseTarget("latest"); err == nil {
		t.Fatalf("expected non-numeric target to be rejected")
	}
}

func TestWithApplicationName(t *testing.T) {
	got := withApplicationName("postgres://u:p@localhost:5432/raceweek?sslmode=disable", "raceweek-stats-migration")
	if !strings.Contains(got, "application_name=raceweek-stats-migration") {
		t.Fatalf("expected application_name in %q", got)
	}

	dsn := "host=localhost dbname=raceweek"
	if got := withApplicationName(dsn, "x"); got != dsn {
		t.Fatalf("expected dsn unchanged, got %q", got)
	}
}

type fakeMigrator struct {
	steps   int
	target  uint
	forced  int
	upErr   error
	version uint
	dirty   bool
	verErr  error
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = n
	return nil
}

func (f *fakeMigrator) Migrate(version uint) error {
	f.target = version
	return migrate.ErrNoChange
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = version
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.verErr }

func TestCommands_DriveMigrator(t *testing.T) {
	m := &fakeMigrator{}

	down, _ := lookupCommand("down")
	if err := down.run(m, []string{"2"}, io.Discard); err != nil || m.steps != -2 {
		t.Fatalf("down: steps=%d err=%v", m.steps, err)
	}

	gotoCmd, ok := lookupCommand(" MIGRATE ")
	if !ok || gotoCmd.name != "goto" {
		t.Fatalf("expected migrate alias for goto, got %+v", gotoCmd)
	}
	if err := gotoCmd.run(m, []string{"3"}, io.Discard); err != nil || m.target != 3 {
		t.Fatalf("goto must treat no change as success: target=%d err=%v", m.target, err)
	}

	force, _ := lookupCommand("force")
	if err := force.run(m, nil, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error without version, got %v", err)
	}
	if err := force.run(m, []string{"1"}, io.Discard); err != nil || m.forced != 1 {
		t.Fatalf("force: forced=%d err=%v", m.forced, err)
	}

	up, _ := lookupCommand("up")
	m.upErr = errors.New("dirty database version 2")
	if err := up.run(m, nil, io.Discard); err == nil || !strings.Contains(err.Error(), "dirty database") {
		t.Fatalf("expected up failure, got %v", err)
	}
}

func TestVersionCommand_Output(t *testing.T) {
	var out bytes.Buffer
	if err := runVersion(&fakeMigrator{verErr: migrate.ErrNilVersion}, nil, &out); err != nil {
		t.Fatalf("version: %v", err)
	}
	if out.String() != "version: none\ndirty: false\n" {
		t.Fatalf("unexpected empty-db output %q", out.String())
	}

	out.Reset()
	if err := runVersion(&fakeMigrator{version: 3, dirty: true}, nil, &out); err != nil {
		t.Fatalf("version: %v", err)
	}
	if out.String() != "version: 3\ndirty: true\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRun_RejectsUnknownCommandBeforeConnecting(t *testing.T) {
	if err := run([]string{"sideways"}, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(nil, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for empty args, got %v", err)
	}
}

func TestPrintUsage_ListsEveryCommand(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	for _, cmd := range commands {
		if !strings.Contains(out.String(), cmd.example) {
			t.Fatalf("usage misses %q:\n%s", cmd.example, out.String())
		}
	}
}
