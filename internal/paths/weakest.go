package paths

import (
	"fmt"
	"sort"
	"strings"

	"github.com/idnahacks/GoodHound/internal/format"
)

// Link is a Node->Relationship->Node triple with its frequency across the
// full path set. Attack paths tend to share the same few pivot edges, so
// the most frequent triples are the cheapest remediation targets.
type Link struct {
	Chain     string  // "A->Rel->B"
	StartNode string
	Rel       string
	EndNode   string
	Count     int
	Coverage  float64 // percent of all paths the triple appears in
	Query     string  // BloodHound visualization query
}

// WeakestLinks interleaves each path's nodes and relationships into a
// chain, slides a length-3 window (step 2) over it to emit every
// Node->Rel->Node triple, and tallies triple frequency across all paths.
// The top k triples are returned with their path coverage; ties keep the
// order in which the triple first appeared in the input.
func WeakestLinks(all []Path, totalPaths, k int) []Link {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	parts := make(map[string][3]string)

	for _, p := range all {
		chain := interleave(p.NodeLabels, p.RelLabels)
		for i := 0; i+2 < len(chain); i += 2 {
			triple := [3]string{chain[i], chain[i+1], chain[i+2]}
			key := strings.Join(triple[:], "->")
			if _, ok := counts[key]; !ok {
				firstSeen[key] = len(firstSeen)
				parts[key] = triple
			}
			counts[key]++
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return firstSeen[keys[i]] < firstSeen[keys[j]]
	})
	if k >= 0 && len(keys) > k {
		keys = keys[:k]
	}

	out := make([]Link, 0, len(keys))
	for _, key := range keys {
		triple := parts[key]
		l := Link{
			Chain:     key,
			StartNode: triple[0],
			Rel:       triple[1],
			EndNode:   triple[2],
			Count:     counts[key],
		}
		if totalPaths > 0 {
			l.Coverage = format.Round1(float64(l.Count) / float64(totalPaths) * 100)
		}
		l.Query = linkQuery(l)
		out = append(out, l)
	}
	return out
}

// linkQuery builds a visualization query joining a shortest path into the
// triple's start node, the triple itself, and a shortest path from its end
// node to any highvalue target.
func linkQuery(l Link) string {
	return fmt.Sprintf(`match p1=shortestpath((g:Group {highvalue:false})-[*1..]->(n1 {name:'%s'})) match p2=((n1)-[:%s]->(n2 {name:'%s'})) match p3=shortestpath((n2)-[*1..]->(h {highvalue:true})) return p1,p2,p3`, l.StartNode, l.Rel, l.EndNode)
}

// interleave zips nodes and relationships into the alternating chain
// n0, r0, n1, r1, ..., nN of length 2*hops+1.
func interleave(nodes, rels []string) []string {
	out := make([]string, 0, len(nodes)+len(rels))
	for i, n := range nodes {
		out = append(out, n)
		if i < len(rels) {
			out = append(out, rels[i])
		}
	}
	return out
}
