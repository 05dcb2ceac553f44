package deploy

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoOutput is returned when a build leaves no output directory or index.html.
var ErrNoOutput = errors.New("no build output found")

// CommandRunner runs an external command in dir and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// BuildCommand returns the build command for p, or nil when nothing needs building.
func (p *Project) BuildCommand() []string {
	if p.Config.BuildCommand != "" {
		return strings.Fields(p.Config.BuildCommand)
	}
	switch p.Framework {
	case FrameworkNext:
		return []string{"npx", "next", "build"}
	case FrameworkReact, FrameworkVue:
		return []string{"npm", "run", "build"}
	case FrameworkAngular:
		return []string{"npx", "ng", "build", "--output-path=dist"}
	}
	return nil
}

// NeedsInstall reports whether dependencies must be installed before building.
func (p *Project) NeedsInstall() bool {
	return fileExists(filepath.Join(p.Dir, "package.json"))
}

// CommandError carries the output of a failed install or build step.
type CommandError struct {
	Step   string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Step, e.Err, out)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Install runs npm install in the project directory.
func Install(ctx context.Context, r CommandRunner, p *Project) error {
	if out, err := r.Run(ctx, p.Dir, "npm", "install"); err != nil {
		return &CommandError{Step: "npm install", Output: string(out), Err: err}
	}
	return nil
}

// Build runs the project's build command, if any.
func Build(ctx context.Context, r CommandRunner, p *Project) error {
	argv := p.BuildCommand()
	if len(argv) == 0 {
		return nil
	}
	if out, err := r.Run(ctx, p.Dir, argv[0], argv[1:]...); err != nil {
		return &CommandError{Step: strings.Join(argv, " "), Output: string(out), Err: err}
	}
	return nil
}

var outputDirCandidates = []string{"out", "build", "dist"}

// OutputDir locates the build output: dehost.yaml output_dir, then out, build,
// dist. Static projects fall back to the project root.
func (p *Project) OutputDir() (string, error) {
	if p.Config.OutputDir != "" {
		dir := filepath.Join(p.Dir, p.Config.OutputDir)
		if !dirExists(dir) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoOutput, p.Config.OutputDir)
		}
		return dir, nil
	}
	for _, name := range outputDirCandidates {
		if dir := filepath.Join(p.Dir, name); dirExists(dir) {
			return dir, nil
		}
	}
	if p.Framework == FrameworkStatic {
		return p.Dir, nil
	}
	return "", fmt.Errorf("%w: none of %s", ErrNoOutput, strings.Join(outputDirCandidates, ", "))
}

var indexCandidates = []string{"index.html", filepath.Join("home", "index.html"), filepath.Join("public", "index.html")}

// FindIndexHTML returns the path of the site's index.html inside dir.
func FindIndexHTML(dir string) (string, error) {
	for _, rel := range indexCandidates {
		if path := filepath.Join(dir, rel); fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no index.html in %s", ErrNoOutput, dir)
}
