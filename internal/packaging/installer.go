package packaging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/plexmon/internal/fsutil"
)

// ErrForeignPlugin reports a plugin path that is not a link to plexmon.
var ErrForeignPlugin = errors.New("packaging: plugin path taken by another plugin")

// Installer handles installing and uninstalling plexmon in a Munin node.
type Installer struct {
	cfg     InstallConfig
	systemd SystemdController
	root    RootChecker
	logger  *slog.Logger
}

// NewInstaller creates a new Installer with defaults applied.
func NewInstaller(cfg InstallConfig, systemd SystemdController, root RootChecker, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:     cfg,
		systemd: systemd,
		root:    root,
		logger:  logger.With("component", "packaging"),
	}
}

// Install copies the binary, writes the configuration files and links every
// plugin into the Munin plugin directory. Re-running Install is safe.
func (ins *Installer) Install() error {
	if !ins.root.IsRoot() {
		return errors.New("packaging: install requires root privileges")
	}
	if err := ins.cfg.Validate(); err != nil {
		return err
	}

	if err := ins.copyBinary(); err != nil {
		return err
	}

	if err := os.MkdirAll(ins.cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("packaging: create directory %s: %w", ins.cfg.ConfigDir, err)
	}
	configPath := filepath.Join(ins.cfg.ConfigDir, "plugins.yaml")
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		content := GenerateDefaultConfig(ins.cfg.Plugins)
		if err := fsutil.WriteFileAtomic(configPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("packaging: write config: %w", err)
		}
		ins.logger.Info("default config written", "path", configPath)
	} else if err == nil {
		ins.logger.Info("existing config preserved", "path", configPath)
	} else {
		return fmt.Errorf("packaging: stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ins.cfg.PluginConfPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create plugin-conf directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(ins.cfg.PluginConfPath, []byte(GeneratePluginConf(ins.cfg)), 0o644); err != nil {
		return fmt.Errorf("packaging: write plugin conf: %w", err)
	}
	ins.logger.Info("plugin conf written", "path", ins.cfg.PluginConfPath)

	if err := os.MkdirAll(ins.cfg.PluginDir, 0o755); err != nil {
		return fmt.Errorf("packaging: create directory %s: %w", ins.cfg.PluginDir, err)
	}
	for _, name := range ins.cfg.Plugins {
		if err := ins.linkPlugin(name); err != nil {
			return err
		}
	}

	return ins.restartNode()
}

// Uninstall removes the plugin links, the plugin conf and the binary. If
// purge is true, the configuration directory is also removed. Links that do
// not point at the installed binary are left alone.
func (ins *Installer) Uninstall(purge bool) error {
	if !ins.root.IsRoot() {
		return errors.New("packaging: uninstall requires root privileges")
	}

	for _, name := range ins.cfg.Plugins {
		if err := ins.unlinkPlugin(name); err != nil {
			return err
		}
	}

	if err := os.Remove(ins.cfg.PluginConfPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove plugin conf: %w", err)
	}
	ins.logger.Info("plugin conf removed", "path", ins.cfg.PluginConfPath)

	if err := os.Remove(ins.cfg.BinaryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove binary: %w", err)
	}
	ins.logger.Info("binary removed", "path", ins.cfg.BinaryPath)

	if purge {
		if err := os.RemoveAll(ins.cfg.ConfigDir); err != nil {
			return fmt.Errorf("packaging: remove directory %s: %w", ins.cfg.ConfigDir, err)
		}
		ins.logger.Info("directory removed", "path", ins.cfg.ConfigDir)
	}

	return ins.restartNode()
}

// linkPlugin links name in the plugin directory to the binary.
func (ins *Installer) linkPlugin(name string) error {
	path := filepath.Join(ins.cfg.PluginDir, name)
	target, err := ins.linkTarget(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case target == ins.cfg.BinaryPath:
		ins.logger.Info("plugin already linked", "plugin", name, "path", path)
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrForeignPlugin, path, target)
	}
	if err := os.Symlink(ins.cfg.BinaryPath, path); err != nil {
		return fmt.Errorf("packaging: link plugin %s: %w", name, err)
	}
	ins.logger.Info("plugin linked", "plugin", name, "path", path)
	return nil
}

func (ins *Installer) unlinkPlugin(name string) error {
	path := filepath.Join(ins.cfg.PluginDir, name)
	target, err := ins.linkTarget(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case target != ins.cfg.BinaryPath:
		ins.logger.Warn("plugin path not linked to plexmon, left in place", "plugin", name, "path", path, "target", target)
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: unlink plugin %s: %w", name, err)
	}
	ins.logger.Info("plugin unlinked", "plugin", name, "path", path)
	return nil
}

// linkTarget returns the target of the symlink at path. A path that exists
// but is not a symlink is reported with ErrForeignPlugin.
func (ins *Installer) linkTarget(path string) (string, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("packaging: stat %s: %w", path, err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%w: %s is not a link", ErrForeignPlugin, path)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("packaging: read link %s: %w", path, err)
	}
	return target, nil
}

// restartNode restarts a running Munin node so it picks up plugin changes.
func (ins *Installer) restartNode() error {
	if !ins.systemd.IsAvailable() {
		ins.logger.Info("systemd not available, restart the munin node to apply plugin changes")
		return nil
	}
	if !ins.systemd.IsActive(ins.cfg.ServiceName) {
		ins.logger.Info("munin node not running, skipping restart", "service", ins.cfg.ServiceName)
		return nil
	}
	if err := ins.systemd.Restart(ins.cfg.ServiceName); err != nil {
		return fmt.Errorf("packaging: restart %s: %w", ins.cfg.ServiceName, err)
	}
	ins.logger.Info("munin node restarted", "service", ins.cfg.ServiceName)
	return nil
}

func (ins *Installer) copyBinary() error {
	srcPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable path: %w", err)
	}

	// Resolve symlinks
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: resolve symlinks: %w", err)
	}

	dstPath := ins.cfg.BinaryPath

	if srcPath == dstPath {
		ins.logger.Info("binary already at install path, skipping copy", "path", dstPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: open source binary: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("packaging: create destination binary: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("packaging: copy binary: %w", err)
	}

	ins.logger.Info("binary installed", "src", srcPath, "dst", dstPath)
	return nil
}
