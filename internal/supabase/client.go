package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
	"race-photos-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

// NewClient builds a service-role Supabase client. Only its storage API is
// used; table access goes through DatabaseClient.
func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns a StorageClient bound to the configured photo bucket.
func (c *Client) Storage() *StorageClient {
	return NewStorageClient(c.Supabase.Storage, c.Config.SupabaseStorageBucket)
}
