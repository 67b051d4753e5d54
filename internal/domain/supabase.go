package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient gives repositories access to PostgREST and GoTrue.
type SupabaseClient interface {
	Initialize() error
	IsInitialized() bool
	ValidateToken(token string) (*SupabaseUser, error)

	DB() *supabase.Client
	GetClientWithToken(token string) (*supabase.Client, error)
}
