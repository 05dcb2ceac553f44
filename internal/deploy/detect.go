// Package deploy builds a web project and publishes it to IPFS through
// Lighthouse.
package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Framework names a supported project type.
type Framework string

const (
	FrameworkNext    Framework = "Next.js"
	FrameworkReact   Framework = "React"
	FrameworkVue     Framework = "Vue"
	FrameworkAngular Framework = "Angular"
	FrameworkStatic  Framework = "Static"
)

// ErrNoFramework is returned when a directory holds neither a recognised
// package.json nor an index.html.
var ErrNoFramework = errors.New("no supported framework or index.html found")

// ProjectConfigFile is the optional per-project override file.
const ProjectConfigFile = "dehost.yaml"

// ProjectConfig is the contents of dehost.yaml. Every field is optional.
type ProjectConfig struct {
	Framework    string `yaml:"framework"`
	BuildCommand string `yaml:"build_command"`
	OutputDir    string `yaml:"output_dir"`
	Name         string `yaml:"name"`
	Domain       string `yaml:"domain"`
}

// Project is a directory ready to build.
type Project struct {
	Dir       string
	Framework Framework
	Config    ProjectConfig
}

type packageJSON struct {
	Name            string            `json:"name"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p packageJSON) has(dep string) bool {
	_, ok := p.Dependencies[dep]
	if !ok {
		_, ok = p.DevDependencies[dep]
	}
	return ok
}

// LoadProjectConfig reads dehost.yaml from dir. A missing file yields a zero config.
func LoadProjectConfig(dir string) (ProjectConfig, error) {
	var cfg ProjectConfig
	data, err := os.ReadFile(filepath.Join(dir, ProjectConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ProjectConfigFile, err)
	}
	return cfg, nil
}

// DetectFramework inspects package.json in dir. Dependencies are checked in
// order next, react, vue, @angular/core; a directory without package.json but
// with index.html is Static.
func DetectFramework(dir string) (Framework, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if os.IsNotExist(err) {
		if fileExists(filepath.Join(dir, "index.html")) {
			return FrameworkStatic, nil
		}
		return "", ErrNoFramework
	}
	if err != nil {
		return "", err
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("parse package.json: %w", err)
	}
	switch {
	case pkg.has("next"):
		return FrameworkNext, nil
	case pkg.has("react"):
		return FrameworkReact, nil
	case pkg.has("vue"):
		return FrameworkVue, nil
	case pkg.has("@angular/core"):
		return FrameworkAngular, nil
	}
	return "", ErrNoFramework
}

// ParseFramework accepts a framework name as written in dehost.yaml.
func ParseFramework(s string) (Framework, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "next.js", "nextjs":
		return FrameworkNext, nil
	case "react":
		return FrameworkReact, nil
	case "vue":
		return FrameworkVue, nil
	case "angular":
		return FrameworkAngular, nil
	case "static", "html":
		return FrameworkStatic, nil
	}
	return "", fmt.Errorf("unknown framework %q", s)
}

// Inspect loads dehost.yaml and determines the framework of the project in dir.
// A framework set in dehost.yaml wins over detection.
func Inspect(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadProjectConfig(abs)
	if err != nil {
		return nil, err
	}

	p := &Project{Dir: abs, Config: cfg}
	if cfg.Framework != "" {
		if p.Framework, err = ParseFramework(cfg.Framework); err != nil {
			return nil, err
		}
		return p, nil
	}
	if p.Framework, err = DetectFramework(abs); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the site name: dehost.yaml, then package.json, then the directory name.
func (p *Project) Name() string {
	if p.Config.Name != "" {
		return p.Config.Name
	}
	if data, err := os.ReadFile(filepath.Join(p.Dir, "package.json")); err == nil {
		var pkg packageJSON
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}
	return filepath.Base(p.Dir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
