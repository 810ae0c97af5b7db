package database

import (
	"fmt"

	"homeglow/config"

	"github.com/supabase-community/supabase-go"
)

// SupabaseClient reads the hosted catalog tables (services, contractors).
var SupabaseClient *supabase.Client

// InitSupabase creates the hosted catalog client.
func InitSupabase() error {
	if config.AppConfig.SupabaseURL == "" || config.AppConfig.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY must be set")
	}
	client, err := supabase.NewClient(config.AppConfig.SupabaseURL, config.AppConfig.SupabaseKey, nil)
	if err != nil {
		return fmt.Errorf("failed to create supabase client: %w", err)
	}
	SupabaseClient = client
	return nil
}
