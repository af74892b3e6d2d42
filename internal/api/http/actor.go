package http

import (
	"net/http"

	authmw "github.com/perfcycle/perfcycle/internal/auth/middleware"
	"github.com/perfcycle/perfcycle/internal/campaign"
	"github.com/perfcycle/perfcycle/internal/rbac"
)

func actorFrom(r *http.Request) campaign.Actor {
	id := authmw.IdentityFromContext(r.Context())
	if id.External {
		return campaign.Actor{ExternalID: id.Sub}
	}
	return campaign.Actor{UserID: id.Sub, Admin: id.Role == rbac.RoleAdmin}
}
