package model

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Meesho/BharatMLStack/weaver/internal/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/rs/zerolog/log"
)

const defaultECRRegion = "us-east-1"

// Credentials carry one registry login and the registry endpoint itself.
type Credentials struct {
	Username string
	Password string
	Registry string
}

// RegistryAuth resolves short-lived credentials for a private image
// registry.
type RegistryAuth interface {
	Authorize(ctx context.Context) (Credentials, error)
}

// ecrAuth fetches ECR authorization tokens through the AWS SDK. Tokens come
// back base64 encoded as "user:password" with the registry proxy endpoint
// alongside.
type ecrAuth struct {
	region string
}

func NewECRAuth(region string) RegistryAuth {
	return &ecrAuth{region: region}
}

func (e *ecrAuth) Authorize(ctx context.Context) (Credentials, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(e.region))
	if err != nil {
		return Credentials{}, fmt.Errorf("load aws config: %w", err)
	}
	client := ecr.NewFromConfig(cfg)
	out, err := client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return Credentials{}, fmt.Errorf("get ecr authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return Credentials{}, fmt.Errorf("ecr returned no authorization data")
	}
	data := out.AuthorizationData[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return Credentials{}, fmt.Errorf("decode ecr authorization token: %w", err)
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, fmt.Errorf("malformed ecr authorization token")
	}
	return Credentials{
		Username: username,
		Password: password,
		Registry: aws.ToString(data.ProxyEndpoint),
	}, nil
}

// registryRuntime backs ecr sources: it logs in to the registry, pulls the
// fully qualified image and then behaves exactly like a docker source with
// pulling disabled.
type registryRuntime struct {
	*containerRuntime
	auth RegistryAuth
}

func (r *registryRuntime) Start(ctx context.Context) error {
	if r.source.Repository == "" {
		return errs.NewModelError(r.modelKey, "missing ecr repository in model configuration", nil)
	}

	creds, err := r.auth.Authorize(ctx)
	if err != nil {
		return errs.NewModelError(r.modelKey, "failed to authorize with image registry", err)
	}
	registryHost := strings.TrimPrefix(creds.Registry, "https://")
	if err := r.engine.Login(ctx, registryHost, creds.Username, creds.Password); err != nil {
		return errs.NewModelError(r.modelKey, "failed to log in to image registry", err)
	}

	tag := r.source.Tag
	if tag == "" {
		tag = "latest"
	}
	image := fmt.Sprintf("%s/%s:%s", registryHost, r.source.Repository, tag)
	log.Info().Str("image", image).Msg("pulling model image from ecr")
	if err := r.engine.Pull(ctx, image); err != nil {
		return errs.NewModelError(r.modelKey, "failed to pull model image", err)
	}

	pull := false
	r.containerRuntime.source.Image = image
	r.containerRuntime.source.Pull = &pull
	return r.containerRuntime.Start(ctx)
}
