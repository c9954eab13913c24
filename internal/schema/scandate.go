package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
)

// scanDateQuery infers the collection date: domain controllers advertise
// LDAP/GC service principal names, and the newest lastlogontimestamp among
// them approximates when the dataset was captured.
const scanDateQuery = `MATCH (n:Computer) WHERE ANY(item IN n.serviceprincipalnames WHERE item =~ '(?i)ldap/.*' OR item =~ '(?i)gc/.*') RETURN n.lastlogontimestamp AS date ORDER BY date DESC LIMIT 1`

// ScanDate returns the inferred scan date as a Unix timestamp plus its
// YYYY-MM-DD presentation form.
func ScanDate(ctx context.Context, c *neo4jgraph.Client) (int64, string, error) {
	v, err := c.Scalar(ctx, scanDateQuery)
	if err != nil {
		return 0, "", neo4jgraph.QueryError(scanDateQuery, err)
	}
	var ts int64
	switch x := v.(type) {
	case int64:
		ts = x
	case float64:
		ts = int64(x)
	case nil:
		return 0, "", fmt.Errorf("no domain controller with a lastlogontimestamp found")
	default:
		return 0, "", fmt.Errorf("unexpected lastlogontimestamp type %T", v)
	}
	return ts, FormatScanDate(ts), nil
}

func FormatScanDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
