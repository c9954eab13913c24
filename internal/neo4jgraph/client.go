package neo4jgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// Client wraps a Neo4j driver and exposes the small query surface the
// pipeline needs: read a result set, run a write statement, fetch a scalar.
type Client struct {
	driver neo4j.DriverWithContext
	db     string
}

func Connect(ctx context.Context, uri, user, pass string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return &Client{driver: driver, db: "neo4j"}, nil
}

func (c *Client) Close(ctx context.Context) {
	if c == nil || c.driver == nil {
		return
	}
	_ = c.driver.Close(ctx)
}

// Read runs a Cypher read query and collects every row into a ResultSet.
func (c *Client) Read(ctx context.Context, cypher string) (ResultSet, error) {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.db})
	defer sess.Close(ctx)

	var rs ResultSet
	err := withRetries(ctx, func() error {
		anyRes, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return collect(ctx, tx, cypher)
		})
		if err != nil {
			return err
		}
		rs = anyRes.(ResultSet)
		return nil
	})
	if err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

// Write runs a Cypher statement that mutates the graph (SET cost, schema
// patches). The result summary is consumed and discarded.
func (c *Client) Write(ctx context.Context, cypher string) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.db})
	defer sess.Close(ctx)

	return withRetries(ctx, func() error {
		_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, cypher, nil)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		return err
	})
}

// Scalar runs a read query and returns the first column of the first row,
// or nil when the query matches nothing.
func (c *Client) Scalar(ctx context.Context, cypher string) (any, error) {
	rs, err := c.Read(ctx, cypher)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 || len(rs.Rows[0]) == 0 {
		return nil, nil
	}
	return rs.Rows[0][0], nil
}

// Warmup touches every node and relationship once so the page cache is hot
// before the shortest-path queries run. Failure is not fatal.
func (c *Client) Warmup(ctx context.Context) {
	const warmup = `MATCH (n) OPTIONAL MATCH (n)-[r]->() RETURN count(n.name) + count(r.isacl)`
	if _, err := c.Read(ctx, warmup); err != nil {
		log.Debug().Err(err).Msg("database warmup failed")
	}
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string) (ResultSet, error) {
	res, err := tx.Run(ctx, cypher, nil)
	if err != nil {
		return ResultSet{}, err
	}
	var cols []string
	rows := make([][]any, 0)
	for res.Next(ctx) {
		rec := res.Record()
		if cols == nil {
			cols = append([]string(nil), rec.Keys...)
		}
		row := make([]any, 0, len(rec.Keys))
		for _, k := range rec.Keys {
			v, _ := rec.Get(k)
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := res.Err(); err != nil {
		return ResultSet{}, err
	}
	if cols == nil {
		cols = []string{}
	}
	return ResultSet{Columns: cols, Rows: rows}, nil
}

const maxAttempts = 3

func withRetries(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !looksTransient(err) {
			return err
		}
		// small backoff
		sleep := time.Duration(200*(attempt+1)) * time.Millisecond
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}

func looksTransient(err error) bool {
	var neo4jErr *neo4j.Neo4jError
	if errors.As(err, &neo4jErr) {
		return neo4jErr.Classification() == "TransientError"
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"connection refused", "i/o timeout", "temporary", "eof", "broken pipe", "reset by peer", "serviceunavailable"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// QueryError attaches the leading words of the offending statement to an
// error so the operator can tell which statement class failed.
func QueryError(stmt string, err error) error {
	return fmt.Errorf("query %q: %w", firstWords(stmt, 8), err)
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
