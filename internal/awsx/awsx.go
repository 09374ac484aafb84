// Package awsx loads the AWS configuration shared by the Lex, Chime SDK and
// identity lookup clients.
package awsx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/soyeahso/sharkchat/internal/config"
)

// Load resolves region and credentials. Static keys in cfg win over the SDK
// default chain (env, shared profile, instance role).
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return aws.Config{}, fmt.Errorf("missing region")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if p := StaticProvider(cfg); p != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(p))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	return awsCfg, nil
}

// StaticProvider returns a provider for the configured keys, or nil when no
// keys are set.
func StaticProvider(cfg config.AWSConfig) aws.CredentialsProvider {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
}
