// Package credentials loads the four cloud CLI settings from a local .env file.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Variable names read from the credentials file.
const (
	KeyAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeySecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeyRegion          = "AWS_DEFAULT_REGION"
	KeyOutputFormat    = "AWS_OUTPUT_FORMAT"
)

// Keys lists the required variables in file order.
var Keys = []string{KeyAccessKeyID, KeySecretAccessKey, KeyRegion, KeyOutputFormat}

// Sentinel errors
var (
	ErrMissingCredentialsFile   = errors.New("credentials file not found")
	ErrMalformedCredentialsFile = errors.New("credentials file is malformed")
	ErrMissingCredential        = errors.New("credential not set")
)

// MissingCredentialsFileError is returned when the file does not exist.
type MissingCredentialsFileError struct {
	Path string
}

func (e *MissingCredentialsFileError) Error() string {
	return fmt.Sprintf("credentials file %s not found", e.Path)
}

func (e *MissingCredentialsFileError) Is(target error) bool {
	return target == ErrMissingCredentialsFile
}

// MalformedCredentialsFileError is returned when the file cannot be parsed.
type MalformedCredentialsFileError struct {
	Path string
	Err  error
}

func (e *MalformedCredentialsFileError) Error() string {
	return fmt.Sprintf("credentials file %s is malformed: %v", e.Path, e.Err)
}

func (e *MalformedCredentialsFileError) Unwrap() error { return e.Err }

func (e *MalformedCredentialsFileError) Is(target error) bool {
	return target == ErrMalformedCredentialsFile
}

// MissingCredentialError names the required variables that are absent or empty.
type MissingCredentialError struct {
	Path string
	Keys []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("credentials file %s is missing %s", e.Path, strings.Join(e.Keys, ", "))
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// Credentials are the four values written to the CLI profile.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	OutputFormat    string
}

// Load reads and validates the credentials file at path.
func Load(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, &MissingCredentialsFileError{Path: path}
		}
		return Credentials{}, fmt.Errorf("failed to open credentials file %s: %w", path, err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return Credentials{}, &MalformedCredentialsFileError{Path: path, Err: err}
	}

	return FromMap(path, env)
}

// FromMap builds Credentials from already parsed variables. source is only
// used in error messages.
func FromMap(source string, env map[string]string) (Credentials, error) {
	var missing []string
	get := func(key string) string {
		v := strings.TrimSpace(env[key])
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	creds := Credentials{
		AccessKeyID:     get(KeyAccessKeyID),
		SecretAccessKey: get(KeySecretAccessKey),
		Region:          get(KeyRegion),
		OutputFormat:    get(KeyOutputFormat),
	}
	if len(missing) > 0 {
		return Credentials{}, &MissingCredentialError{Path: source, Keys: missing}
	}
	return creds, nil
}

// Map returns the credentials keyed by variable name.
func (c Credentials) Map() map[string]string {
	return map[string]string{
		KeyAccessKeyID:     c.AccessKeyID,
		KeySecretAccessKey: c.SecretAccessKey,
		KeyRegion:          c.Region,
		KeyOutputFormat:    c.OutputFormat,
	}
}

// Export sets the four variables in the process environment.
func (c Credentials) Export() error {
	for key, value := range c.Map() {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}

// Secrets returns the values that must never reach a log line.
func (c Credentials) Secrets() []string {
	return []string{c.AccessKeyID, c.SecretAccessKey}
}

// String masks the key material.
func (c Credentials) String() string {
	return fmt.Sprintf("access_key_id=%s region=%s output=%s", mask(c.AccessKeyID), c.Region, c.OutputFormat)
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
