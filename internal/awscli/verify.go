package awscli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/c-dragonai/stockllm/internal/credentials"
)

// VerifyProfile reads profile back from the shared credentials and config files
// and checks that the access key id and region match creds. Environment
// variables are not consulted. Empty paths in files fall back to
// DefaultSharedFiles.
func VerifyProfile(ctx context.Context, profile string, creds credentials.Credentials, files SharedFiles) error {
	if files.CredentialsFile == "" || files.ConfigFile == "" {
		defaults, err := DefaultSharedFiles()
		if err != nil {
			return err
		}
		if files.CredentialsFile == "" {
			files.CredentialsFile = defaults.CredentialsFile
		}
		if files.ConfigFile == "" {
			files.ConfigFile = defaults.ConfigFile
		}
	}

	shared, err := config.LoadSharedConfigProfile(ctx, profile, func(o *config.LoadSharedConfigOptions) {
		o.CredentialsFiles = []string{files.CredentialsFile}
		o.ConfigFiles = []string{files.ConfigFile}
	})
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", profile, err)
	}

	if shared.Region != creds.Region {
		return &ProfileFieldError{
			Profile: profile,
			Field:   FieldRegion,
			Err:     fmt.Errorf("got %q, want %q", shared.Region, creds.Region),
		}
	}
	if shared.Credentials.AccessKeyID != creds.AccessKeyID {
		return &ProfileFieldError{
			Profile: profile,
			Field:   FieldAccessKeyID,
			Err:     errors.New("profile holds a different access key id"),
		}
	}
	return nil
}
