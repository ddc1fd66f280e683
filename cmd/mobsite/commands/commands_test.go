package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobsite/internal/config"
	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

type testEnv struct {
	root   *CLI
	global *Global
	out    *bytes.Buffer
	output string
}

// newTestEnv writes a configuration with one mob record and history enabled.
func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "a.md"), []byte("---\nid: a\ntitle: Alpha\n---\nWe mob on Mondays.\n"), 0o600))

	output := filepath.Join(dir, "public")
	cfg := fmt.Sprintf("site:\n  name: Mobs\n%sdata:\n  dir: %s\noutput:\n  directory: %s\nhistory:\n  enabled: true\n  db_path: %s\n",
		extra, data, output, filepath.Join(dir, "history.db"))
	path := filepath.Join(dir, "mobsite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out := &bytes.Buffer{}
	return &testEnv{root: &CLI{Config: path}, global: &Global{Out: out}, out: out, output: output}
}

func TestBuildCmd_WritesSiteMetricsAndHistory(t *testing.T) {
	env := newTestEnv(t, "")
	metricsFile := filepath.Join(t.TempDir(), "mobsite.prom")

	require.NoError(t, (&BuildCmd{MetricsFile: metricsFile}).Run(env.global, env.root))
	assert.Contains(t, env.out.String(), "outcome=success")
	assert.FileExists(t, filepath.Join(env.output, "index.html"))
	assert.FileExists(t, filepath.Join(env.output, "mobs", "a.html"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `mobsite_build_outcomes_total{outcome="success"} 1`)
	assert.Contains(t, string(prom), "mobsite_records 1")

	env.out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5, JSON: true}).Run(env.global, env.root))
	var builds []struct {
		Status  string `json:"status"`
		Trigger string `json:"trigger"`
		Records int    `json:"records"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &builds))
	require.Len(t, builds, 1)
	assert.Equal(t, "success", builds[0].Status)
	assert.Equal(t, "cli", builds[0].Trigger)
	assert.Equal(t, 1, builds[0].Records)

	env.out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5}).Run(env.global, env.root))
	assert.Contains(t, env.out.String(), "BROKEN LINKS")
	assert.Contains(t, env.out.String(), "success")
}

func TestBuildCmd_OutputOverride(t *testing.T) {
	env := newTestEnv(t, "")
	override := filepath.Join(t.TempDir(), "site")

	require.NoError(t, (&BuildCmd{Output: override, NoVerifyLinks: true}).Run(env.global, env.root))
	assert.FileExists(t, filepath.Join(override, "join.html"))
	assert.NoDirExists(t, env.output)
}

func TestBuildCmd_AssetFailureExitCode(t *testing.T) {
	env := newTestEnv(t, "  fonts: [Missing.woff2]\n")

	err := (&BuildCmd{}).Run(env.global, env.root)
	require.Error(t, err)
	assert.Equal(t, 11, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, env.out.String(), "outcome=failed")
	assert.Contains(t, env.out.String(), "Output not promoted")
	assert.NoDirExists(t, env.output)
}

func TestBuildCmd_MissingConfig(t *testing.T) {
	root := &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")}
	err := (&BuildCmd{}).Run(&Global{Out: &bytes.Buffer{}}, root)
	require.Error(t, err)
	assert.Equal(t, 7, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestTargetsCmd(t *testing.T) {
	env := newTestEnv(t, "  base_path: site\n")

	require.NoError(t, (&TargetsCmd{}).Run(env.global, env.root))
	assert.Contains(t, env.out.String(), "PATH")
	assert.Contains(t, env.out.String(), "site/mobs/a.html")
	assert.NoDirExists(t, env.output)

	env.out.Reset()
	require.NoError(t, (&TargetsCmd{JSON: true}).Run(env.global, env.root))
	var targets []target
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &targets))
	require.NotEmpty(t, targets)
	assert.Equal(t, target{Path: "index.html", FinalPath: "site/index.html", Kind: targets[0].Kind}, targets[0])

	byPath := map[string]string{}
	for _, tg := range targets {
		byPath[tg.Path] = tg.FinalPath
	}
	assert.Equal(t, "site/mobs/a.html", byPath["mobs/a.html"])
	assert.Equal(t, "site/index.css", byPath["index.css"])
}

func TestHistoryCmd_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mobsite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  name: Mobs\ndata:\n  dir: "+dir+"\n"), 0o600))

	err := (&HistoryCmd{Limit: 1}).Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: path})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobsite.yaml")
	out := &bytes.Buffer{}

	require.NoError(t, RunInit(out, path, false))
	assert.Contains(t, out.String(), "Initialized successfully")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Mob Programming", cfg.Site.Name)

	err = RunInit(out, path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	require.NoError(t, RunInit(out, path, true))
}

func TestCLIParsing(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-c", "site.yaml", "build", "-o", "out", "--no-verify-links", "--metrics-file", "m.prom"})
	require.NoError(t, err)
	assert.Equal(t, "build", ctx.Command())
	assert.True(t, filepath.IsAbs(cli.Config))
	assert.Equal(t, "site.yaml", filepath.Base(cli.Config))
	assert.Equal(t, "out", filepath.Base(cli.Build.Output))
	assert.True(t, cli.Build.NoVerifyLinks)

	ctx, err = parser.Parse([]string{"history", "-n", "3"})
	require.NoError(t, err)
	assert.Equal(t, "history", ctx.Command())
	assert.Equal(t, 3, cli.History.Limit)

	_, err = parser.Parse([]string{"publish"})
	require.Error(t, err)
}

func TestResolveLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	level, source := resolveLogLevel(true, config.LogLevelError)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, "flag", source)

	level, source = resolveLogLevel(false, config.LogLevelWarn)
	assert.Equal(t, slog.LevelWarn, level)
	assert.Equal(t, "config", source)

	level, source = resolveLogLevel(false, "")
	assert.Equal(t, slog.LevelInfo, level)
	assert.Equal(t, "default", source)

	t.Setenv(EnvLogLevel, "ERROR")
	level, source = resolveLogLevel(false, config.LogLevelWarn)
	assert.Equal(t, slog.LevelError, level)
	assert.Equal(t, "env", source)
}

func TestResolveLogFormat(t *testing.T) {
	t.Setenv(EnvLogFormat, "")
	assert.Equal(t, config.LogFormatText, resolveLogFormat(""))
	assert.Equal(t, config.LogFormatJSON, resolveLogFormat(config.LogFormatJSON))

	t.Setenv(EnvLogFormat, " JSON ")
	assert.Equal(t, config.LogFormatJSON, resolveLogFormat(config.LogFormatText))

	t.Setenv(EnvLogFormat, "xml")
	assert.Equal(t, config.LogFormatText, resolveLogFormat(config.LogFormatJSON))
}
