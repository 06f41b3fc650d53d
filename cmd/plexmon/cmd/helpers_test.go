package cmd

import (
	"bytes"
	"sync"
	"testing"
	"time"

	ntpclient "github.com/beevik/ntp"
	"github.com/spf13/pflag"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/packaging"
)

// execute runs the CLI with args after the program name and returns what it
// wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeAs(t, "plexmon", args...)
}

// executeAs runs the CLI as if invoked under program name prog.
func executeAs(t *testing.T, prog string, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := Execute(append([]string{prog}, args...))
	t.Logf("stderr:\n%s", stderr.String())
	return stdout.String(), err
}

// resetFlags restores flag state left over by earlier executions.
func resetFlags(t *testing.T) {
	t.Helper()
	cfgFile = config.DefaultFile
	envOverrides = nil
	logLevel = "info"
	outputFormat = ""
	installPlugins = pluginNames
	installPluginDir = packaging.DefaultPluginDir
	installPgUser = "postgres"
	purge = false
	uninstallPluginDir = packaging.DefaultPluginDir
	lookupEnv = func(string) (string, bool) { return "", false }
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Name == "help" || f.Name == "version" {
				_ = f.Value.Set("false")
			}
		})
	}
}

// fakeNTP answers every query with the same valid response, synchronised to
// 192.0.2.1.
type fakeNTP struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNTP) query(string, ntpclient.QueryOptions) (*ntpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	now := time.Now()
	return &ntpclient.Response{
		Time:           now,
		ReferenceTime:  now.Add(-time.Minute),
		ClockOffset:    time.Millisecond,
		RTT:            2 * time.Millisecond,
		Stratum:        2,
		ReferenceID:    0xc0000201,
		RootDelay:      20 * time.Millisecond,
		RootDispersion: 30 * time.Millisecond,
	}, nil
}

func (f *fakeNTP) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// useFakeNTP routes NTP queries of the test to a fake server.
func useFakeNTP(t *testing.T) *fakeNTP {
	t.Helper()
	f := &fakeNTP{}
	ntpQuery = f.query
	t.Cleanup(func() { ntpQuery = nil })
	return f
}
