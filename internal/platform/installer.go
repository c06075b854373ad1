package platform

import (
	"context"
	"fmt"
	"os"

	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

// Binary names.
const (
	binAptGet = "apt-get"
	binBrew   = "brew"
	binChoco  = "choco"
	binSudo   = "sudo"

	// DefaultBinary is the cloud CLI the bootstrapper needs on PATH.
	DefaultBinary = "aws"
	// DefaultPackage is the package name every supported package manager uses for it.
	DefaultPackage = "awscli"
)

// Installer makes sure the cloud CLI is resolvable on PATH.
type Installer interface {
	Platform() Kind
	// EnsureInstalled installs the CLI if it is missing and reports whether it did.
	EnsureInstalled(ctx context.Context) (bool, error)
}

// Options tunes what gets installed.
type Options struct {
	Binary  string
	Package string
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	return o
}

// New returns the installer for kind.
func New(kind Kind, runner execx.Runner, opts Options) (Installer, error) {
	opts = opts.withDefaults()
	switch kind {
	case Linux:
		return NewLinuxInstaller(runner, opts), nil
	case Darwin:
		return NewDarwinInstaller(runner, opts), nil
	case Windows:
		return NewWindowsInstaller(runner, opts), nil
	default:
		return nil, &UnsupportedPlatformError{ID: string(kind)}
	}
}

// ForHost detects the platform from id and returns its installer.
func ForHost(id string, runner execx.Runner, opts Options) (Installer, error) {
	kind, err := Detect(id)
	if err != nil {
		return nil, err
	}
	return New(kind, runner, opts)
}

// packageInstaller holds the shared check-then-install flow.
type packageInstaller struct {
	kind    Kind
	runner  execx.Runner
	binary  string
	command func() (string, []string)
}

func (p *packageInstaller) Platform() Kind { return p.kind }

func (p *packageInstaller) EnsureInstalled(ctx context.Context) (bool, error) {
	log := logger.With("installer").With().Str("platform", string(p.kind)).Logger()

	if path, err := p.runner.LookPath(p.binary); err == nil {
		log.Info().Str("binary", p.binary).Str("path", path).Msg("already installed")
		return false, nil
	}

	name, args := p.command()
	log.Info().Str("binary", p.binary).Str("cmd", execx.Describe(name, args...)).Msg("installing")
	if err := p.runner.Run(ctx, name, args...); err != nil {
		return false, fmt.Errorf("failed to install %s: %w", p.binary, err)
	}

	if _, err := p.runner.LookPath(p.binary); err != nil {
		log.Warn().Str("binary", p.binary).Msg("installed but not yet on PATH; open a new shell if later steps fail")
	}
	return true, nil
}

// LinuxInstaller installs through apt-get.
type LinuxInstaller struct {
	packageInstaller
	UseSudo bool
}

// NewLinuxInstaller returns an apt-get installer; sudo is used unless running as root.
func NewLinuxInstaller(runner execx.Runner, opts Options) *LinuxInstaller {
	opts = opts.withDefaults()
	li := &LinuxInstaller{UseSudo: os.Geteuid() != 0}
	li.packageInstaller = packageInstaller{
		kind:   Linux,
		runner: runner,
		binary: opts.Binary,
		command: func() (string, []string) {
			args := []string{"install", "-y", opts.Package}
			if li.UseSudo {
				return binSudo, append([]string{binAptGet}, args...)
			}
			return binAptGet, args
		},
	}
	return li
}

// DarwinInstaller installs through Homebrew.
type DarwinInstaller struct {
	packageInstaller
}

// NewDarwinInstaller returns a brew installer.
func NewDarwinInstaller(runner execx.Runner, opts Options) *DarwinInstaller {
	opts = opts.withDefaults()
	return &DarwinInstaller{packageInstaller{
		kind:   Darwin,
		runner: runner,
		binary: opts.Binary,
		command: func() (string, []string) {
			return binBrew, []string{"install", opts.Package}
		},
	}}
}

// WindowsInstaller installs through Chocolatey from a POSIX-compatible shell.
type WindowsInstaller struct {
	packageInstaller
}

// NewWindowsInstaller returns a choco installer.
func NewWindowsInstaller(runner execx.Runner, opts Options) *WindowsInstaller {
	opts = opts.withDefaults()
	return &WindowsInstaller{packageInstaller{
		kind:   Windows,
		runner: runner,
		binary: opts.Binary,
		command: func() (string, []string) {
			return binChoco, []string{"install", opts.Package, "-y"}
		},
	}}
}

var (
	_ Installer = (*LinuxInstaller)(nil)
	_ Installer = (*DarwinInstaller)(nil)
	_ Installer = (*WindowsInstaller)(nil)
)
