package paths

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog/log"

	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
)

// MemberSource supplies the direct membership of a group. The production
// implementation queries the graph; tests inject fixtures.
type MemberSource interface {
	// DirectUsers returns the enabled non-highvalue users directly member
	// of the group.
	DirectUsers(ctx context.Context, group string) ([]string, error)
	// DirectSubgroups returns the non-highvalue groups directly member of
	// the group.
	DirectSubgroups(ctx context.Context, group string) ([]string, error)
}

type graphMemberSource struct {
	c *neo4jgraph.Client
}

func NewMemberSource(c *neo4jgraph.Client) MemberSource {
	return graphMemberSource{c: c}
}

func (s graphMemberSource) DirectUsers(ctx context.Context, group string) ([]string, error) {
	return s.column(ctx, fmt.Sprintf(directUsersQuery, group))
}

func (s graphMemberSource) DirectSubgroups(ctx context.Context, group string) ([]string, error) {
	return s.column(ctx, fmt.Sprintf(directSubgroupsQuery, group))
}

func (s graphMemberSource) column(ctx context.Context, q string) ([]string, error) {
	rs, err := s.c.Read(ctx, q)
	if err != nil {
		return nil, neo4jgraph.QueryError(q, err)
	}
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) > 0 {
			out = append(out, asString(row[0]))
		}
	}
	return out, nil
}

// ExpandOptions controls membership expansion. Workers bounds the number of
// roots expanded concurrently; Progress, when set, is called once per
// finished root.
type ExpandOptions struct {
	Workers  int
	Progress func(group string)
}

// ExpandMembers resolves the transitive user membership of every starting
// group under MemberOf. Each root is a worklist BFS over its subgroup
// graph; a global memo caches finished roots so later roots splice in
// complete member sets instead of re-walking shared subtrees. AD group
// graphs can contain membership cycles, so each BFS tracks the groups it
// has already taken off the worklist and never re-expands them.
//
// Memo entries are published only after a root's BFS has fully drained,
// which keeps partial results from ever being spliced in. Distinct roots
// may expand concurrently.
func ExpandMembers(ctx context.Context, src MemberSource, roots []string, opts ExpandOptions) (map[string][]string, error) {
	e := &expander{src: src, memo: make(map[string][]string, len(roots))}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			if _, err := e.expandRoot(gctx, root); err != nil {
				return fmt.Errorf("expanding %s: %w", root, err)
			}
			if opts.Progress != nil {
				opts.Progress(root)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return e.memo, nil
}

type expander struct {
	src  MemberSource
	mu   sync.Mutex
	memo map[string][]string // complete member sets only
}

func (e *expander) cached(group string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.memo[group]
	return m, ok
}

func (e *expander) publish(group string, members []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.memo[group]; !ok {
		e.memo[group] = members
	}
}

func (e *expander) expandRoot(ctx context.Context, root string) ([]string, error) {
	if m, ok := e.cached(root); ok {
		return m, nil
	}
	log.Debug().Str("group", root).Msg("expanding group membership")

	members := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(users []string) {
		for _, u := range users {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			members = append(members, u)
		}
	}

	direct, err := e.src.DirectUsers(ctx, root)
	if err != nil {
		return nil, err
	}
	add(direct)

	queue, err := e.src.DirectSubgroups(ctx, root)
	if err != nil {
		return nil, err
	}
	processed := map[string]struct{}{root: {}}
	for len(queue) > 0 {
		sub := queue[0]
		queue = queue[1:]
		if _, done := processed[sub]; done {
			continue
		}
		processed[sub] = struct{}{}

		if cachedMembers, ok := e.cached(sub); ok {
			add(cachedMembers)
			continue
		}
		users, err := e.src.DirectUsers(ctx, sub)
		if err != nil {
			return nil, err
		}
		add(users)
		children, err := e.src.DirectSubgroups(ctx, sub)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	e.publish(root, members)
	return members, nil
}

// TotalUniqueUsers counts the distinct users that have some path, either
// through a starting group or directly.
func TotalUniqueUsers(membership map[string][]string, userPaths []Path) int {
	unique := make(map[string]struct{})
	for _, members := range membership {
		for _, m := range members {
			unique[m] = struct{}{}
		}
	}
	for _, p := range userPaths {
		unique[p.StartNode] = struct{}{}
	}
	return len(unique)
}
