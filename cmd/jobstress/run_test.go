package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func newTestApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:     "jobstress",
		Writer:   out,
		Commands: []*cli.Command{RunCommand(), ConfigCommand()},
		ExitErrHandler: func(c *cli.Context, err error) {
			// keep os.Exit out of tests
		},
	}
}

// TestRunAction_Scenarios verifies the run command end to end
// Given: The run command with two workers on each backend
// When: The tree and one-sided scenarios run
// Then: Each prints a full result line
func TestRunAction_Scenarios(t *testing.T) {
	for _, backend := range []string{"fiber", "thread"} {
		t.Run(backend, func(t *testing.T) {
			var out bytes.Buffer
			app := newTestApp(&out)

			err := app.Run([]string{"jobstress", "run",
				"--backend", backend, "--workers", "2",
				"--scenario", "tree", "--scenario", "onesided",
				"--depth", "6", "--jobs", "100",
			})
			if err != nil {
				t.Fatalf("run error = %v", err)
			}

			got := out.String()
			for _, want := range []string{"round 1 tree", "executed=63/63", "round 1 onesided", "executed=100/100"} {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestRunAction_RejectsUnknownScenario(t *testing.T) {
	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"jobstress", "run", "--scenario", "zigzag"})
	if err == nil || !strings.Contains(err.Error(), "zigzag") {
		t.Fatalf("error = %v, want unknown scenario", err)
	}
}

// TestConfigAction_Precedence verifies file, environment and flag layering
// Given: A config file, an environment variable and a flag
// When: The config command prints the resolved config
// Then: Flags beat the environment, which beats the file
func TestConfigAction_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\nmax_fibers: 99\nbackend: thread\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBSYSTEM_MAX_FIBERS", "123")

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"jobstress", "config", "--config", path, "--backend", "fiber"})
	if err != nil {
		t.Fatalf("config error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"backend=fiber", "workers=3", "max_fibers=123"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}
