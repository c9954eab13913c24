// Package schema prepares a BloodHound graph for path analysis: it labels
// edges with exploit costs, applies operator-supplied Cypher, patches the
// missing highvalue attribute left by some collector versions, and elevates
// DCSync-capable principals to highvalue so they become path targets.
package schema

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
)

// ApplyFile executes a file of operator-supplied Cypher statements, one per
// line. Typical use is tagging extra assets as highvalue before the path
// queries run. Any failing statement aborts.
func ApplyFile(ctx context.Context, c *neo4jgraph.Client, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	stmts, err := ParseStatements(f)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	log.Info().Int("statements", len(stmts)).Msg("Writing custom schema")
	for _, stmt := range stmts {
		if err := c.Write(ctx, stmt); err != nil {
			return neo4jgraph.QueryError(stmt, err)
		}
	}
	return nil
}

// ParseStatements reads one Cypher statement per line, skipping blank lines.
func ParseStatements(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PatchHighValue sets highvalue=false on every Base node where the property
// is null. BloodHound 4.1 stopped tagging non-highvalue objects, which
// breaks every query that assumes the attribute is two-valued.
func PatchHighValue(ctx context.Context, c *neo4jgraph.Client) error {
	log.Info().Msg("Patching null highvalue attributes")
	const patch = `MATCH (n:Base) WHERE n.highvalue IS NULL SET n.highvalue = FALSE`
	if err := c.Write(ctx, patch); err != nil {
		return neo4jgraph.QueryError(patch, err)
	}
	return nil
}

const (
	highValueMembersQuery = `match (n)-[:MemberOf*1..]->(g:Group {highvalue:true}) with n as hv match (hv {highvalue:false}) return distinct(hv.name) as name`

	// A principal can DCSync only when it holds both GetChanges and
	// GetChangesAll against the domain, directly or through groups.
	dcsyncersQuery = `MATCH (n1)-[:MemberOf|GetChanges*1..]->(u:Domain) WITH n1,u MATCH (n1)-[:MemberOf|GetChangesAll*1..]->(u) WITH n1,u MATCH p = (n1)-[:MemberOf|GetChanges|GetChangesAll*1..]->(u) RETURN distinct(n1.objectid) as sid, n1.name as name`
)

// ElevateDCSyncers marks every DCSync-capable principal as highvalue unless
// it is already a member of a highvalue group, making it an endpoint of the
// subsequent path searches.
func ElevateDCSyncers(ctx context.Context, c *neo4jgraph.Client) error {
	log.Info().Msg("Searching for principals that can perform a DCSync attack")

	hvRows, err := c.Read(ctx, highValueMembersQuery)
	if err != nil {
		return neo4jgraph.QueryError(highValueMembersQuery, err)
	}
	hvNames := make(map[string]struct{}, len(hvRows.Rows))
	idx := hvRows.ColumnIndex()
	for _, row := range hvRows.Rows {
		if name, ok := row[idx["name"]].(string); ok && name != "" {
			hvNames[name] = struct{}{}
		}
	}

	dcRows, err := c.Read(ctx, dcsyncersQuery)
	if err != nil {
		return neo4jgraph.QueryError(dcsyncersQuery, err)
	}
	dcIdx := dcRows.ColumnIndex()
	for _, row := range dcRows.Rows {
		name, _ := row[dcIdx["name"]].(string)
		sid, _ := row[dcIdx["sid"]].(string)
		if name == "" {
			name = sid
		}
		if name == "" {
			continue
		}
		if _, isHV := hvNames[name]; isHV {
			continue
		}
		stmt := fmt.Sprintf(`MATCH (n {name:"%s"}) SET n.highvalue = true`, name)
		if err := c.Write(ctx, stmt); err != nil {
			return neo4jgraph.QueryError(stmt, err)
		}
		log.Debug().Str("principal", name).Msg("elevated DCSync-capable principal to highvalue")
	}
	return nil
}
