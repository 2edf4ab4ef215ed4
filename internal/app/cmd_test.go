package app

import (
	"bytes"
	"sort"
	"testing"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	sort.Strings(got)

	want := []string{"healthcheck", "migrate", "serve", "worker"}
	for _, name := range want {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
	if len(got) < len(want) {
		t.Errorf("subcommands = %v, want at least %v", got, want)
	}
}

func TestNewRootCommand_MigrateSubcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	for _, args := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"migrate", "version"}} {
		cmd, _, err := root.Find(args)
		if err != nil {
			t.Errorf("Find(%v) error: %v", args, err)
			continue
		}
		if cmd.Name() != args[1] {
			t.Errorf("Find(%v) = %q, want %q", args, cmd.Name(), args[1])
		}
	}
}

func TestNewRootCommand_MigrateDownStepsDefault(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	cmd, _, err := root.Find([]string{"migrate", "down"})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	steps, err := cmd.Flags().GetInt("steps")
	if err != nil {
		t.Fatalf("steps flag: %v", err)
	}
	if steps != defaultRollbackSteps {
		t.Errorf("steps = %d, want %d", steps, defaultRollbackSteps)
	}
}

func TestRun_UnknownCommand_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"unknown"}); err == nil {
		t.Error("Run([unknown]) should return error")
	}
}

func TestRun_Healthcheck_ServerDown_ReturnsError(t *testing.T) {
	t.Setenv("SERVER_PORT", "1")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Error("healthcheck against a closed port should return error")
	}
}
