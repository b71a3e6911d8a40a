package retry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/estuary/docpipe/document"
)

// EtcdCounter is a coordination-service-backed Counter. Per-document
// counts live under a per-run etcd prefix as lease-scoped keys, so a
// Worker pool that crashes without calling Remove doesn't leak counters
// forever: the lease simply expires.
type EtcdCounter struct {
	client *clientv3.Client
	prefix string
	ttl    time.Duration

	lease clientv3.LeaseID
}

var _ Counter = (*EtcdCounter)(nil)

// defaultLeaseTTL bounds how long an orphaned retry count survives a
// crashed Worker.
const defaultLeaseTTL = 10 * time.Minute

// NewEtcdCounter returns an EtcdCounter storing counts under
// prefix+"/"+runID+"/". It grants its own lease here, at construction,
// and keeps it alive in the background.
func NewEtcdCounter(ctx context.Context, client *clientv3.Client, prefix, runID string) (*EtcdCounter, error) {
	grant, err := client.Grant(ctx, int64(defaultLeaseTTL.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("retry: granting lease: %w", err)
	}
	keepAlive, err := client.KeepAlive(context.Background(), grant.ID)
	if err != nil {
		return nil, fmt.Errorf("retry: starting keepalive: %w", err)
	}
	go func() {
		for range keepAlive {
			// drain responses; renewal happens automatically.
		}
	}()

	return &EtcdCounter{
		client: client,
		prefix: fmt.Sprintf("%s/%s/", prefix, runID),
		ttl:    defaultLeaseTTL,
		lease:  grant.ID,
	}, nil
}

func (c *EtcdCounter) key(docID string) string {
	return c.prefix + docID
}

// Add increments doc's count via a compare-and-swap transaction (read
// the current value, then put the incremented value conditioned on the
// key's mod revision being unchanged), retrying on conflict.
func (c *EtcdCounter) Add(doc *document.Document, maxRetries int) (bool, error) {
	ctx := context.Background()
	key := c.key(doc.ID())

	for {
		resp, err := c.client.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("retry: reading count for %s: %w", doc.ID(), err)
		}

		var count int64
		var modRev int64
		if len(resp.Kvs) > 0 {
			count, err = strconv.ParseInt(string(resp.Kvs[0].Value), 10, 64)
			if err != nil {
				return false, fmt.Errorf("retry: parsing count for %s: %w", doc.ID(), err)
			}
			modRev = resp.Kvs[0].ModRevision
		}
		count++

		txn := c.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", modRev)).
			Then(clientv3.OpPut(key, strconv.FormatInt(count, 10), clientv3.WithLease(c.lease)))
		txnResp, err := txn.Commit()
		if err != nil {
			return false, fmt.Errorf("retry: committing count for %s: %w", doc.ID(), err)
		}
		if !txnResp.Succeeded {
			continue // lost the race with a concurrent Add; retry
		}
		return count > int64(maxRetries), nil
	}
}

// Remove deletes doc's count.
func (c *EtcdCounter) Remove(doc *document.Document) error {
	if _, err := c.client.Delete(context.Background(), c.key(doc.ID())); err != nil {
		return fmt.Errorf("retry: removing count for %s: %w", doc.ID(), err)
	}
	return nil
}

// Close revokes the counter's lease, immediately clearing every count it
// still holds.
func (c *EtcdCounter) Close() error {
	if _, err := c.client.Revoke(context.Background(), c.lease); err != nil {
		return fmt.Errorf("retry: revoking lease: %w", err)
	}
	return nil
}
