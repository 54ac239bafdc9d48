/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/krutt/endur/config"
	"github.com/krutt/endur/internal/cache"
	"github.com/krutt/endur/internal/request"
)

// priceCacheKey is where the most recent BTC/USD quote is kept.
const priceCacheKey = "endur:price:btcusd"

// Source is one public BTC/USD price feed. JsonPath walks the response body
// to the quote value; array indices are given as decimal strings.
type Source struct {
	Name     string
	Url      string
	JsonPath []string
}

// DefaultSources are the public feeds consulted for the reference price.
func DefaultSources() []Source {
	return []Source{
		{Name: "bitstamp", Url: "https://www.bitstamp.net/api/v2/ticker/btcusd/", JsonPath: []string{"last"}},
		{Name: "coingecko", Url: "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd", JsonPath: []string{"bitcoin", "usd"}},
		{Name: "coinbase", Url: "https://api.coinbase.com/v2/prices/spot?currency=USD", JsonPath: []string{"data", "amount"}},
		{Name: "kraken", Url: "https://api.kraken.com/0/public/Ticker?pair=XBTUSD", JsonPath: []string{"result", "XXBTZUSD", "c", "0"}},
		{Name: "gemini", Url: "https://api.gemini.com/v1/pubticker/btcusd", JsonPath: []string{"last"}},
	}
}

// Service retrieves the current BTC/USD reference price from a set of public
// feeds and keeps the most recent quote cached. The cached quote is the
// fallback the peg engine consults before paying the cost of a fresh fetch.
type Service struct {
	sources  []Source
	cache    cache.Cache
	timeout  time.Duration
	cacheTTL time.Duration
}

// NewService creates a price Service from the loaded configuration.
func NewService(priceCache cache.Cache) (*Service, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	return &Service{
		sources:  DefaultSources(),
		cache:    priceCache,
		timeout:  time.Duration(cnf.Oracle.TimeoutSec) * time.Second,
		cacheTTL: time.Duration(cnf.Oracle.CacheTtlSec) * time.Second,
	}, nil
}

// NewServiceWithSources creates a price Service with an explicit feed set.
func NewServiceWithSources(priceCache cache.Cache, sources []Source, timeout, cacheTTL time.Duration) *Service {
	return &Service{
		sources:  sources,
		cache:    priceCache,
		timeout:  timeout,
		cacheTTL: cacheTTL,
	}
}

// CachedPrice returns the most recently cached quote. Zero means no quote is
// available; callers treat that as "price unknown", never as a price.
func (s *Service) CachedPrice(ctx context.Context) decimal.Decimal {
	var raw string
	if err := s.cache.Get(ctx, priceCacheKey, &raw); err != nil {
		logrus.WithError(err).Warn("price cache read failed")
		return decimal.Zero
	}
	if raw == "" {
		return decimal.Zero
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		logrus.WithError(err).Warnf("discarding malformed cached price %q", raw)
		return decimal.Zero
	}
	return price
}

// LatestPrice fetches a fresh quote from every configured feed and returns
// the median of the successful responses. The result is written back to the
// cache. The whole round is retried with exponential backoff before giving
// up.
func (s *Service) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	var price decimal.Decimal

	operation := func() error {
		quotes := s.fetchAll(ctx)
		if len(quotes) == 0 {
			return errors.New("no price source responded")
		}
		price = median(quotes)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return decimal.Zero, err
	}

	if err := s.cache.Set(ctx, priceCacheKey, price.String(), s.cacheTTL); err != nil {
		logrus.WithError(err).Warn("price cache write failed")
	}
	return price, nil
}

// fetchAll queries every source concurrently and collects the quotes that
// came back well-formed.
func (s *Service) fetchAll(ctx context.Context) []decimal.Decimal {
	var mu sync.Mutex
	var wg sync.WaitGroup
	quotes := make([]decimal.Decimal, 0, len(s.sources))

	for _, source := range s.sources {
		wg.Add(1)
		go func(source Source) {
			defer wg.Done()
			quote, err := s.fetchOne(ctx, source)
			if err != nil {
				logrus.WithError(err).Warnf("price fetch from %s failed", source.Name)
				return
			}
			mu.Lock()
			quotes = append(quotes, quote)
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	return quotes
}

func (s *Service) fetchOne(ctx context.Context, source Source) (decimal.Decimal, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, source.Url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var body interface{}
	if _, err := request.Call(req, &body); err != nil {
		return decimal.Zero, err
	}

	value, err := walkJsonPath(body, source.JsonPath)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing %s response", source.Name)
	}

	price, err := toDecimal(value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing %s quote", source.Name)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("%s returned non-positive price %s", source.Name, price)
	}
	return price, nil
}

// walkJsonPath follows a path of object keys and array indices through a
// decoded JSON document.
func walkJsonPath(document interface{}, path []string) (interface{}, error) {
	current := document
	for _, step := range path {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[step]
			if !ok {
				return nil, errors.Errorf("missing key %q", step)
			}
			current = next
		case []interface{}:
			index, err := strconv.Atoi(step)
			if err != nil || index < 0 || index >= len(node) {
				return nil, errors.Errorf("bad array index %q", step)
			}
			current = node[index]
		default:
			return nil, errors.Errorf("cannot descend into %T with step %q", current, step)
		}
	}
	return current, nil
}

// toDecimal accepts both representations feeds use for quotes: JSON numbers
// and numeric strings.
func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	default:
		return decimal.Zero, errors.Errorf("unsupported quote type %T", value)
	}
}

func median(quotes []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
