// Package paths enumerates attack paths from a prepared BloodHound graph,
// expands the transitive user membership of the starting groups, and
// decomposes paths into their most common weak links.
package paths

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
)

// Path is one normalized shortest-path row. RelLabels always has exactly
// Hops entries and NodeLabels one more; FullPath is the canonical join of
// the alternating node/relationship sequence.
type Path struct {
	StartNode  string
	SID        string
	Hops       int
	Cost       int
	NodeLabels []string
	RelLabels  []string
	FullPath   string
}

// EnumerateGroups runs the group-rooted shortest-path query, or the
// operator's replacement query when one is supplied. The replacement must
// return the same column set as the default.
func EnumerateGroups(ctx context.Context, c *neo4jgraph.Client, customQuery string) ([]Path, error) {
	q := groupPathQuery
	if customQuery != "" {
		q = customQuery
	}
	rs, err := c.Read(ctx, q)
	if err != nil {
		if customQuery != "" {
			return nil, fmt.Errorf("custom query failed, check the syntax: %w", err)
		}
		return nil, neo4jgraph.QueryError(q, err)
	}
	return fromResultSet(rs)
}

// EnumerateUsers runs the user-rooted fallback query.
func EnumerateUsers(ctx context.Context, c *neo4jgraph.Client) ([]Path, error) {
	rs, err := c.Read(ctx, userPathQuery)
	if err != nil {
		return nil, neo4jgraph.QueryError(userPathQuery, err)
	}
	return fromResultSet(rs)
}

// TotalEnabledNonAdmins counts the enabled non-highvalue users in the
// dataset; it is the denominator for every reach percentage.
func TotalEnabledNonAdmins(ctx context.Context, c *neo4jgraph.Client) (int, error) {
	v, err := c.Scalar(ctx, totalEnabledNonAdminsQuery)
	if err != nil {
		return 0, neo4jgraph.QueryError(totalEnabledNonAdminsQuery, err)
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("unexpected user count value %v", v)
	}
	return n, nil
}

func fromResultSet(rs neo4jgraph.ResultSet) ([]Path, error) {
	if len(rs.Rows) == 0 {
		return nil, nil
	}
	idx := rs.ColumnIndex()
	for _, col := range []string{"startnode", "hops", "cost", "nodeLabels", "relLabels", "full_path", "SID"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("path query result is missing column %q", col)
		}
	}
	out := make([]Path, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		p := Path{
			StartNode:  asString(row[idx["startnode"]]),
			SID:        asString(row[idx["SID"]]),
			FullPath:   asString(row[idx["full_path"]]),
			NodeLabels: asStringSlice(row[idx["nodeLabels"]]),
			RelLabels:  asStringSlice(row[idx["relLabels"]]),
		}
		hops, ok := asInt(row[idx["hops"]])
		if !ok {
			return nil, fmt.Errorf("path row for %q has no hop count", p.StartNode)
		}
		p.Hops = hops
		if cost, ok := asInt(row[idx["cost"]]); ok {
			p.Cost = cost
		} else {
			// Edges outside the cost table yield a null sum; score them
			// as free rather than dropping the path.
			log.Info().Str("startnode", p.StartNode).Int("hops", p.Hops).Msg("null edge cost found")
		}
		if p.StartNode == "" {
			p.StartNode = p.SID
		}
		out = append(out, p)
	}
	return out, nil
}

// MaxCost is the run-global risk-score denominator: the longest path in the
// set, costed as if every hop were a session hop, plus one. It is computed
// once per run; a single very long path raises the denominator for everyone.
func MaxCost(all []Path) int {
	maxHops := 0
	for _, p := range all {
		if p.Hops > maxHops {
			maxHops = p.Hops
		}
	}
	return maxHops*3 + 1
}

// UniqueStartGroups returns the distinct starting nodes in first-seen order.
func UniqueStartGroups(groupPaths []Path) []string {
	seen := make(map[string]struct{}, len(groupPaths))
	out := make([]string, 0, len(groupPaths))
	for _, p := range groupPaths {
		if _, ok := seen[p.StartNode]; ok {
			continue
		}
		seen[p.StartNode] = struct{}{}
		out = append(out, p.StartNode)
	}
	return out
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int64:
		return int(x), true
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			out = append(out, asString(x))
		}
		return out
	default:
		return nil
	}
}
