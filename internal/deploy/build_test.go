package deploy

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	argv string
}

type fakeRunner struct {
	calls  []call
	output string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, argv: strings.Join(append([]string{name}, args...), " ")})
	return []byte(f.output), f.err
}

func TestBuildCommands(t *testing.T) {
	tests := []struct {
		fw   Framework
		want string
	}{
		{FrameworkNext, "npx next build"},
		{FrameworkReact, "npm run build"},
		{FrameworkVue, "npm run build"},
		{FrameworkAngular, "npx ng build --output-path=dist"},
		{FrameworkStatic, ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.fw), func(t *testing.T) {
			p := &Project{Dir: "/src", Framework: tc.fw}
			assert.Equal(t, tc.want, strings.Join(p.BuildCommand(), " "))
		})
	}
}

func TestInstallAndBuild(t *testing.T) {
	r := &fakeRunner{}
	p := &Project{Dir: "/src/app", Framework: FrameworkReact}

	require.NoError(t, Install(context.Background(), r, p))
	require.NoError(t, Build(context.Background(), r, p))
	assert.Equal(t, []call{
		{dir: "/src/app", argv: "npm install"},
		{dir: "/src/app", argv: "npm run build"},
	}, r.calls)
}

func TestBuildStaticRunsNothing(t *testing.T) {
	r := &fakeRunner{}
	require.NoError(t, Build(context.Background(), r, &Project{Dir: "/s", Framework: FrameworkStatic}))
	assert.Empty(t, r.calls)
}

func TestBuildFailureCarriesOutput(t *testing.T) {
	r := &fakeRunner{output: "Module not found: ./App\n", err: errors.New("exit status 1")}
	err := Build(context.Background(), r, &Project{Dir: "/s", Framework: FrameworkVue})

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "npm run build", cerr.Step)
	assert.Contains(t, err.Error(), "Module not found")
}

func TestOutputDir(t *testing.T) {
	dir := t.TempDir()
	p := &Project{Dir: dir, Framework: FrameworkReact}

	_, err := p.OutputDir()
	require.ErrorIs(t, err, ErrNoOutput)

	writeFile(t, filepath.Join(dir, "dist", "index.html"), "x")
	got, err := p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist"), got)

	writeFile(t, filepath.Join(dir, "build", "index.html"), "x")
	got, err = p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build"), got, "build is preferred over dist")
}

func TestOutputDirOverrideAndStatic(t *testing.T) {
	dir := t.TempDir()
	p := &Project{Dir: dir, Framework: FrameworkStatic}
	got, err := p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	p.Config.OutputDir = "site"
	_, err = p.OutputDir()
	require.ErrorIs(t, err, ErrNoOutput)

	writeFile(t, filepath.Join(dir, "site", "index.html"), "x")
	got, err = p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "site"), got)
}

func TestFindIndexHTML(t *testing.T) {
	dir := t.TempDir()
	_, err := FindIndexHTML(dir)
	require.ErrorIs(t, err, ErrNoOutput)

	writeFile(t, filepath.Join(dir, "public", "index.html"), "x")
	got, err := FindIndexHTML(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "public", "index.html"), got)

	writeFile(t, filepath.Join(dir, "index.html"), "x")
	got, err = FindIndexHTML(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), got)
}
