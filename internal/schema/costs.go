package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
)

// CostRule assigns one exploit-cost value to a set of relationship types,
// optionally restricted to edges pointing at a given node label.
type CostRule struct {
	Relationships []string
	TargetLabel   string // empty matches any target node
	Cost          int
}

// CostRules is the canonical edge-cost table. Costs are a rough proxy for
// the operator effort / detection likelihood of exploiting the edge; lower
// is easier. The table is data so revisions are a one-line edit.
var CostRules = []CostRule{
	{Relationships: []string{"MemberOf"}, TargetLabel: "Group", Cost: 0},
	{Relationships: []string{"HasSession"}, Cost: 3},
	{Relationships: []string{"CanRDP", "Contains", "GpLink"}, Cost: 0},
	{Relationships: []string{"AdminTo", "ForceChangePassword", "AllowedToDelegate", "AllowedToAct", "AddAllowedToAct", "ReadLAPSPassword", "ReadGMSAPassword", "HasSidHistory"}, Cost: 1},
	{Relationships: []string{"CanPSRemote", "ExecuteDCOM", "SQLAdmin"}, Cost: 1},
	{Relationships: []string{"AllExtendedRights", "AddMember", "AddMembers", "GenericAll", "WriteDacl", "WriteOwner", "Owns", "GenericWrite", "AddSelf"}, TargetLabel: "Group", Cost: 1},
	{Relationships: []string{"AllExtendedRights", "GenericAll", "WriteDacl", "WriteOwner", "Owns", "GenericWrite", "WriteSPN"}, TargetLabel: "User", Cost: 1},
	{Relationships: []string{"AllExtendedRights", "GenericAll", "WriteDacl", "WriteOwner", "Owns", "GenericWrite"}, TargetLabel: "Computer", Cost: 1},
	{Relationships: []string{"GetChanges", "GetChangesAll", "AllExtendedRights", "GenericAll", "WriteDacl", "WriteOwner", "Owns"}, TargetLabel: "Domain", Cost: 2},
	{Relationships: []string{"GenericAll", "WriteDacl", "WriteOwner", "Owns", "GenericWrite"}, TargetLabel: "GPO", Cost: 1},
	{Relationships: []string{"GenericAll", "WriteDacl", "WriteOwner", "Owns", "GenericWrite"}, TargetLabel: "OU", Cost: 1},
	{Relationships: []string{"AddKeyCredentialLink"}, Cost: 2},
}

// Statement renders the rule as its canonical Cypher SET form.
func (r CostRule) Statement() string {
	target := "(m)"
	if r.TargetLabel != "" {
		target = fmt.Sprintf("(m:%s)", r.TargetLabel)
	}
	return fmt.Sprintf("MATCH (n)-[r:%s]->%s SET r.cost = %d", strings.Join(r.Relationships, "|"), target, r.Cost)
}

// CostStatements returns the rendered statements for every rule in table
// order.
func CostStatements() []string {
	out := make([]string, 0, len(CostRules))
	for _, r := range CostRules {
		out = append(out, r.Statement())
	}
	return out
}

// SetCosts writes the canonical cost value onto every recognized edge.
// Re-running overwrites prior costs to the same values, so it is safe to
// apply on every run. Any statement failure is fatal to the run.
func SetCosts(ctx context.Context, c *neo4jgraph.Client) error {
	log.Info().Msg("Setting edge costs")
	for _, stmt := range CostStatements() {
		if err := c.Write(ctx, stmt); err != nil {
			return neo4jgraph.QueryError(stmt, err)
		}
	}
	return nil
}
