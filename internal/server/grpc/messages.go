package grpc

import (
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

func field(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func accountFields(a *models.Account) map[string]any {
	roles := make([]any, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, r)
	}

	m := map[string]any{
		"id":              a.ID,
		"email":           a.Email,
		"first_name":      a.FirstName,
		"last_name":       a.LastName,
		"display_name":    a.DisplayName(),
		"email_confirmed": a.EmailConfirmed,
		"roles":           roles,
	}
	if a.Providers != nil {
		providers := make([]any, 0, len(a.Providers))
		for _, p := range a.Providers {
			providers = append(providers, p)
		}
		m["providers"] = providers
	}
	if a.LastLoginAt != nil {
		m["last_login_at"] = a.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return m
}

func sessionFields(ss services.ActiveSession) map[string]any {
	return map[string]any{
		"id":               ss.ID,
		"ip_address":       ss.IPAddress,
		"user_agent":       ss.UserAgent,
		"created_at":       ss.CreatedAt.UTC().Format(time.RFC3339),
		"last_activity_at": ss.LastActivityAt.UTC().Format(time.RFC3339),
		"expires_at":       ss.ExpiresAt.UTC().Format(time.RFC3339),
		"current":          ss.Current,
	}
}

// resultMessage encodes a Result plus optional extra fields. The password
// hash never leaves the server because accountFields does not read it.
func resultMessage(r services.Result, extra map[string]any) (*structpb.Struct, error) {
	m := map[string]any{
		"success": r.Success,
		"message": r.Message,
	}
	if r.Account != nil {
		m["account"] = accountFields(r.Account)
	}
	for k, v := range extra {
		m[k] = v
	}
	return structpb.NewStruct(m)
}
