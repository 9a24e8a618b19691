package offers

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/logging"
	"golang.org/x/sync/singleflight"
)

var ErrOfferNotFound = errors.New("offer not found")

// Loader fetches the active offers from the loyalty collaborator.
type Loader interface {
	ListOffers(ctx context.Context, creds collaborator.Credentials) ([]domain.Offer, error)
}

// Catalog serves offer reference data from the cache, falling back to the loader.
type Catalog struct {
	loader  Loader
	cache   OfferCache
	timeout time.Duration
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCatalog(loader Loader, cache OfferCache, timeout time.Duration) *Catalog {
	return &Catalog{
		loader:  loader,
		cache:   cache,
		timeout: timeout,
	}
}

func (c *Catalog) List(ctx context.Context, creds collaborator.Credentials) ([]domain.Offer, error) {
	v, err, _ := c.sfg.Do(cacheKey, func() (interface{}, error) {
		offers, err := c.cache.Get(ctx)
		if err == nil {
			return offers, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logging.Log(logging.Fields{Step: "offer_cache_get", Status: "error", Error: err.Error()})
		}

		loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		offers, err = c.loader.ListOffers(loadCtx, creds)
		if err != nil {
			return nil, err
		}

		valid := make([]domain.Offer, 0, len(offers))
		for _, o := range offers {
			if verr := o.Validate(); verr != nil {
				logging.Log(logging.Fields{Step: "offer_load", Status: "skipped", Message: o.BankName, Error: verr.Error()})
				continue
			}
			valid = append(valid, o)
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := c.cache.Set(setCtx, valid); errSet != nil {
				logging.Log(logging.Fields{Step: "offer_cache_set", Status: "error", Error: errSet.Error()})
			}
		}()

		return valid, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Offer), nil
}

// Find returns the offer with the given id.
func (c *Catalog) Find(ctx context.Context, creds collaborator.Credentials, id int64) (*domain.Offer, error) {
	offers, err := c.List(ctx, creds)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if offers[i].ID == id {
			o := offers[i]
			return &o, nil
		}
	}
	return nil, ErrOfferNotFound
}

func (c *Catalog) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx)
}
