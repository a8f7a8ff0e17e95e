package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/client"
	"github.com/totegamma/backline/internal/usecase"
)

const accountCacheTTL = 5 * time.Minute

// IdentityGateway resolves persona references through the identity resolver
// service, with a shared memcached tier in front of the HTTP call. The
// client adds its own short in-process cache underneath.
type IdentityGateway struct {
	client *client.Client
	mc     *memcache.Client
}

func NewIdentityGateway(cl *client.Client, mc *memcache.Client) *IdentityGateway {
	return &IdentityGateway{
		client: cl,
		mc:     mc,
	}
}

func (g *IdentityGateway) Resolve(ctx context.Context, ref backline.PersonaRef) (backline.Account, error) {
	cacheKey := "account:" + ref.String()

	if g.mc != nil {
		if item, err := g.mc.Get(cacheKey); err == nil {
			var account backline.Account
			if err := json.Unmarshal(item.Value, &account); err == nil {
				return account, nil
			}
		}
	}

	account, err := g.client.ResolveAccount(ctx, ref)
	if err != nil {
		return backline.Account{}, errors.Wrapf(err, "failed to resolve persona %s", ref)
	}

	if g.mc != nil {
		if raw, err := json.Marshal(account); err == nil {
			// Best effort; resolution still works without the shared tier.
			g.mc.Set(&memcache.Item{
				Key:        cacheKey,
				Value:      raw,
				Expiration: int32(accountCacheTTL.Seconds()),
			})
		}
	}

	return account, nil
}

var _ usecase.IdentityResolver = (*IdentityGateway)(nil)
