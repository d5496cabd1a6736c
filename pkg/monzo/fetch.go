package monzo

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yurifrl/monzosync/pkg/config"
	"github.com/yurifrl/monzosync/pkg/models"
)

// Fetch pulls the lookback window of transactions for every main account,
// and every pot account when includePots is set, in parallel. Results are
// gathered into a map keyed by source name, so completion order does not
// matter. Any single fetch failure fails the whole call: there is no
// partial-account processing.
func (c *Client) Fetch(accounts *config.SourceAccounts, daysLookback int, includePots bool) (map[string][]models.RawTransaction, error) {
	since := time.Now().AddDate(0, 0, -daysLookback)

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string][]models.RawTransaction)
	)

	fetch := func(source, accountID string) func() error {
		return func() error {
			raws, err := c.Transactions(accountID, since)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", source, err)
			}
			c.logger.Debug("fetched transactions", "source", source, "count", len(raws))
			mu.Lock()
			results[source] = raws
			mu.Unlock()
			return nil
		}
	}

	for name, id := range accounts.Main {
		g.Go(fetch(name, id))
	}
	if includePots {
		for name, id := range accounts.Pots {
			g.Go(fetch(name+" Pot", id))
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
