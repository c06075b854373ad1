package awscli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"

	"github.com/c-dragonai/stockllm/internal/credentials"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

// SharedFiles locates the CLI's on-disk configuration store.
type SharedFiles struct {
	CredentialsFile string
	ConfigFile      string
}

// DefaultSharedFiles honours AWS_SHARED_CREDENTIALS_FILE and AWS_CONFIG_FILE and
// falls back to ~/.aws.
func DefaultSharedFiles() (SharedFiles, error) {
	files := SharedFiles{
		CredentialsFile: os.Getenv("AWS_SHARED_CREDENTIALS_FILE"),
		ConfigFile:      os.Getenv("AWS_CONFIG_FILE"),
	}
	if files.CredentialsFile != "" && files.ConfigFile != "" {
		return files, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return SharedFiles{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	if files.CredentialsFile == "" {
		files.CredentialsFile = filepath.Join(home, ".aws", "credentials")
	}
	if files.ConfigFile == "" {
		files.ConfigFile = filepath.Join(home, ".aws", "config")
	}
	return files, nil
}

// FileProfileWriter edits the shared credentials and config files directly.
// Both files are rendered before either is replaced, and each replacement is a
// rename of a fully written temp file.
type FileProfileWriter struct {
	files SharedFiles
}

// NewFileProfileWriter returns a writer for the given shared files.
func NewFileProfileWriter(files SharedFiles) *FileProfileWriter {
	return &FileProfileWriter{files: files}
}

// Apply writes the profile into both files.
func (w *FileProfileWriter) Apply(ctx context.Context, profile string, creds credentials.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	credsBody, err := renderSection(w.files.CredentialsFile, profile, []field{
		{FieldAccessKeyID, creds.AccessKeyID},
		{FieldSecretAccessKey, creds.SecretAccessKey},
	})
	if err != nil {
		return &ProfileFieldError{Profile: profile, Field: FieldAccessKeyID, Err: err}
	}

	configBody, err := renderSection(w.files.ConfigFile, configSectionName(profile), []field{
		{FieldRegion, creds.Region},
		{FieldOutput, creds.OutputFormat},
	})
	if err != nil {
		return &ProfileFieldError{Profile: profile, Field: FieldRegion, Err: err}
	}

	previous, hadPrevious, err := readIfExists(w.files.CredentialsFile)
	if err != nil {
		return &ProfileFieldError{Profile: profile, Field: FieldAccessKeyID, Err: err}
	}

	if err := replaceFile(w.files.CredentialsFile, credsBody); err != nil {
		return &ProfileFieldError{Profile: profile, Field: FieldAccessKeyID, Err: err}
	}
	if err := replaceFile(w.files.ConfigFile, configBody); err != nil {
		restoreErr := restore(w.files.CredentialsFile, previous, hadPrevious)
		return &ProfileFieldError{Profile: profile, Field: FieldRegion, Err: errors.Join(err, restoreErr)}
	}

	log := logger.With("profile")
	log.Info().
		Str("profile", profile).
		Str("credentials_file", w.files.CredentialsFile).
		Str("config_file", w.files.ConfigFile).
		Msg("profile written")
	return nil
}

// configSectionName follows the CLI convention: every profile but "default"
// is prefixed in the config file.
func configSectionName(profile string) string {
	if profile == "default" {
		return profile
	}
	return "profile " + profile
}

func renderSection(path, section string, fields []field) ([]byte, error) {
	cfg, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sec := cfg.Section(section)
	for _, f := range fields {
		sec.Key(f.name).SetValue(f.value)
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}

func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed writing %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func restore(path string, previous []byte, hadPrevious bool) error {
	if !hadPrevious {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return replaceFile(path, previous)
}

var _ ProfileWriter = (*FileProfileWriter)(nil)
