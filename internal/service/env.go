package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ensureEnv prepares the isolated runtime environment for the inference
// process: create it if absent, then verify the required modules import,
// installing dependencies only when the probe fails. With no EnvDir
// configured the step is skipped and the base interpreter is used as-is.
func (s *Supervisor) ensureEnv(ctx context.Context) error {
	if s.cfg.EnvDir == "" {
		return nil
	}

	if _, err := os.Stat(s.venvPython()); err != nil {
		s.logger.Info("creating runtime environment", "dir", s.cfg.EnvDir)
		if out, err := s.run(ctx, s.cfg.Python, "-m", "venv", s.cfg.EnvDir); err != nil {
			return fmt.Errorf("create runtime environment: %w: %s", err, out)
		}
	}

	if err := s.importProbe(ctx); err == nil {
		return nil
	}

	if s.cfg.Requirements == "" {
		return fmt.Errorf("runtime environment missing modules %v and no requirements file configured",
			s.cfg.ProbeImports)
	}

	s.logger.Info("installing service dependencies", "requirements", s.cfg.Requirements)
	if out, err := s.run(ctx, s.venvPython(), "-m", "pip", "install", "-r", s.cfg.Requirements); err != nil {
		return fmt.Errorf("install service dependencies: %w: %s", err, out)
	}

	if err := s.importProbe(ctx); err != nil {
		return fmt.Errorf("runtime environment still unusable after install: %w", err)
	}
	return nil
}

// importProbe checks that the required modules import inside the runtime
// environment.
func (s *Supervisor) importProbe(ctx context.Context) error {
	if len(s.cfg.ProbeImports) == 0 {
		return nil
	}
	stmt := "import " + strings.Join(s.cfg.ProbeImports, ", ")
	if out, err := s.run(ctx, s.venvPython(), "-c", stmt); err != nil {
		return fmt.Errorf("import probe failed: %w: %s", err, out)
	}
	return nil
}

func (s *Supervisor) run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// venvPython returns the interpreter inside the runtime environment, or
// the base interpreter when no environment is configured.
func (s *Supervisor) venvPython() string {
	if s.cfg.EnvDir == "" {
		return s.cfg.Python
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(s.cfg.EnvDir, "Scripts", "python.exe")
	}
	return filepath.Join(s.cfg.EnvDir, "bin", "python")
}
