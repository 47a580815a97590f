// Package opensearch provides the event lookup effects (search_events and
// get_event_details) backed by an OpenSearch index.
package opensearch

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v2"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
)

// DefaultIndex holds every known event.
const DefaultIndex = "all-events"

// Config describes how to reach the cluster.
type Config struct {
	// Endpoint is the cluster URL, e.g. https://search-xyz.us-east-1.es.amazonaws.com.
	Endpoint string
	Index    string
	// Region enables AWS SigV4 request signing (service "es") when set.
	Region   string
	Username string
	Password string

	// Credentials replaces the default AWS credential chain when signing.
	Credentials aws.CredentialsProvider
}

// StaticCredentials signs with a fixed access key pair.
func StaticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "concierge",
		}, nil
	})
}

// Connect returns a lazily initialized client factory: the first successful
// call builds the client and pings the cluster, later calls share it. Failed
// attempts are not cached.
func Connect(cfg Config) func(ctx context.Context) (*opensearch.Client, error) {
	var (
		mu     sync.Mutex
		client *opensearch.Client
	)
	return func(ctx context.Context) (*opensearch.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		if client != nil {
			return client, nil
		}
		c, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = c
		return client, nil
	}
}

func newClient(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: opensearch endpoint is not configured", domain.ErrServiceUnavailable)
	}
	osCfg := opensearch.Config{
		Addresses: []string{cfg.Endpoint},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Region != "" {
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.Credentials != nil {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(cfg.Credentials))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: no AWS credentials: %v", domain.ErrServiceUnavailable, err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create request signer: %v", domain.ErrServiceUnavailable, err)
		}
		osCfg.Signer = signer
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create opensearch client: %v", domain.ErrServiceUnavailable, err)
	}

	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to opensearch at %s: %v", domain.ErrServiceUnavailable, cfg.Endpoint, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: opensearch ping returned %s", domain.ErrServiceUnavailable, res.Status())
	}
	return client, nil
}

// unavailable reports whether an HTTP status means the caller cannot fix the request.
func unavailable(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status >= http.StatusInternalServerError
}
