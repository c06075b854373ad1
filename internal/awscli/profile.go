// Package awscli drives the aws command line client: it writes the named
// profile the rest of the tooling uses and reads it back for verification.
package awscli

import (
	"context"
	"errors"
	"fmt"

	"github.com/c-dragonai/stockllm/internal/credentials"
	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

const (
	// Binary is the aws CLI executable name.
	Binary = "aws"
	// DefaultProfile is the profile the bootstrapper writes.
	DefaultProfile = "init-conf"
)

// Profile field names as understood by `aws configure set`.
const (
	FieldAccessKeyID     = "aws_access_key_id"
	FieldSecretAccessKey = "aws_secret_access_key"
	FieldRegion          = "region"
	FieldOutput          = "output"
)

// ErrProfileField is matched by every ProfileFieldError.
var ErrProfileField = errors.New("profile field not applied")

// ProfileFieldError names the field that could not be written.
type ProfileFieldError struct {
	Profile string
	Field   string
	Err     error
}

func (e *ProfileFieldError) Error() string {
	return fmt.Sprintf("failed to set %s on profile %s: %v", e.Field, e.Profile, e.Err)
}

func (e *ProfileFieldError) Unwrap() error { return e.Err }

func (e *ProfileFieldError) Is(target error) bool {
	return target == ErrProfileField
}

// ProfileWriter applies all four credential values to a named profile.
type ProfileWriter interface {
	Apply(ctx context.Context, profile string, creds credentials.Credentials) error
}

type field struct {
	name  string
	value string
}

func profileFields(creds credentials.Credentials) []field {
	return []field{
		{FieldAccessKeyID, creds.AccessKeyID},
		{FieldSecretAccessKey, creds.SecretAccessKey},
		{FieldRegion, creds.Region},
		{FieldOutput, creds.OutputFormat},
	}
}

// CLIProfileWriter writes the profile with `aws configure set`, one call per field.
// The first failing call stops the apply.
type CLIProfileWriter struct {
	runner execx.Runner
	binary string
}

// NewCLIProfileWriter returns a writer that shells out to binary (default "aws").
func NewCLIProfileWriter(runner execx.Runner, binary string) *CLIProfileWriter {
	if binary == "" {
		binary = Binary
	}
	return &CLIProfileWriter{runner: runner, binary: binary}
}

// Apply runs one `configure set` per field.
func (w *CLIProfileWriter) Apply(ctx context.Context, profile string, creds credentials.Credentials) error {
	log := logger.With("profile").With().Str("profile", profile).Logger()

	for _, f := range profileFields(creds) {
		if err := w.runner.Run(ctx, w.binary, "configure", "set", f.name, f.value, "--profile", profile); err != nil {
			return &ProfileFieldError{Profile: profile, Field: f.name, Err: err}
		}
		log.Debug().Str("field", f.name).Msg("field set")
	}

	log.Info().Str("credentials", creds.String()).Msg("profile configured")
	return nil
}

var _ ProfileWriter = (*CLIProfileWriter)(nil)
