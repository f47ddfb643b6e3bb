package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	notesql "github.com/shibukawa/notesql"
)

// packageRenames maps package names from older descriptors onto the name the
// environment actually carries.
var packageRenames = map[string]string{
	"psycopg2-binary": "psycopg2",
}

// Installer checks for and installs driver packages in the kernel's runtime
// environment.
type Installer interface {
	Installed(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkg string) error
}

// EnsureRequirements verifies every package a descriptor requires. Missing
// packages are installed only when the descriptor opts in to autoinstall;
// otherwise the datasource fails with a message telling the user what to
// install themselves.
func EnsureRequirements(ctx context.Context, ins Installer, datasourceID string, pkgs []string, allowInstall bool) error {
	for _, pkg := range pkgs {
		if renamed, ok := packageRenames[pkg]; ok {
			pkg = renamed
		}

		ok, err := ins.Installed(ctx, pkg)
		if err != nil {
			return fmt.Errorf("checking for package %s: %w", pkg, err)
		}
		if ok {
			continue
		}

		if !allowInstall {
			return fmt.Errorf("%w: datasource %s requires package %s, but it is not installed and automatic installation is disabled",
				notesql.ErrMissingRequirement, datasourceID, pkg)
		}

		if err := ins.Install(ctx, pkg); err != nil {
			return fmt.Errorf("%w: %v", notesql.ErrMissingRequirement, err)
		}
	}

	return nil
}

const (
	defaultCheckCommand   = "pip show {package}"
	defaultInstallCommand = "pip install {package}"

	checkTimeout   = 60 * time.Second
	installTimeout = 120 * time.Second
)

// ExecInstaller runs configured shell commands to check for and install
// packages. The literal "{package}" in a command template is replaced with
// the package name; a template without the placeholder gets the name appended
// as the final argument.
type ExecInstaller struct {
	CheckCommand   string
	InstallCommand string
	Logger         *slog.Logger
}

// NewExecInstaller builds an installer around the configured install command.
// An empty command falls back to pip.
func NewExecInstaller(installCommand string, log *slog.Logger) *ExecInstaller {
	if installCommand == "" {
		installCommand = defaultInstallCommand
	}
	if log == nil {
		log = slog.Default()
	}

	return &ExecInstaller{
		CheckCommand:   defaultCheckCommand,
		InstallCommand: installCommand,
		Logger:         log,
	}
}

// Installed reports whether the check command succeeds for the package. A
// non-zero exit is "not installed"; only failures to run the command at all
// are errors.
func (e *ExecInstaller) Installed(ctx context.Context, pkg string) (bool, error) {
	argv, err := commandFor(e.CheckCommand, pkg)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}

		return false, fmt.Errorf("run %q: %w", e.CheckCommand, err)
	}

	return true, nil
}

// Install runs the install command for the package.
func (e *ExecInstaller) Install(ctx context.Context, pkg string) error {
	argv, err := commandFor(e.InstallCommand, pkg)
	if err != nil {
		return err
	}

	e.Logger.Info("installing package", "package", pkg, "command", strings.Join(argv, " "))

	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("install %s failed: %v: %s", pkg, err, strings.TrimSpace(string(output)))
	}

	return nil
}

func commandFor(template, pkg string) ([]string, error) {
	if strings.Contains(template, "{package}") {
		template = strings.ReplaceAll(template, "{package}", pkg)
	} else {
		template = template + " " + pkg
	}

	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty package command")
	}

	return argv, nil
}
