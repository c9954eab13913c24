// Package results turns enumerated paths and group membership counts into
// the risk-scored result set the reports are built from.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/idnahacks/GoodHound/internal/format"
	"github.com/idnahacks/GoodHound/internal/paths"
)

// Result is one scored attack path.
type Result struct {
	StartNode  string
	NumMembers int
	Percentage float64 // reach: percent of enabled non-admins with this path
	Hops       int
	Cost       int
	RiskScore  float64
	FullPath   string
	Query      string // replayable BloodHound query
	UID        string // hex md5 of FullPath; history store primary key
}

// Sort orders for the final report.
const (
	SortUsers = "users"
	SortHops  = "hops"
	SortRisk  = "risk"
)

// Generate scores every enumerated path. Group-rooted paths reach every
// transitive member of their starting group; user-rooted paths reach only
// the user itself. The risk score rewards paths that are both cheap and
// widely reachable:
//
//	riskscore = ((maxcost - cost) / maxcost) * percentage
//
// where maxcost is the run-global value from paths.MaxCost.
func Generate(groupPaths, userPaths []paths.Path, membership map[string][]string, totalEnabledNonAdmins int) []Result {
	all := make([]paths.Path, 0, len(groupPaths)+len(userPaths))
	all = append(all, groupPaths...)
	all = append(all, userPaths...)
	maxCost := paths.MaxCost(all)

	out := make([]Result, 0, len(all))
	for _, p := range groupPaths {
		out = append(out, score(p, len(membership[p.StartNode]), totalEnabledNonAdmins, maxCost))
	}
	for _, p := range userPaths {
		out = append(out, score(p, 1, totalEnabledNonAdmins, maxCost))
	}
	return out
}

func score(p paths.Path, numMembers, total, maxCost int) Result {
	r := Result{
		StartNode:  p.StartNode,
		NumMembers: numMembers,
		Hops:       p.Hops,
		Cost:       p.Cost,
		FullPath:   p.FullPath,
		Query:      ReplayQuery(p),
		UID:        UID(p.FullPath),
	}
	if total > 0 {
		r.Percentage = format.Round1(float64(numMembers) / float64(total) * 100)
	}
	if maxCost > 0 {
		r.RiskScore = format.Round1(float64(maxCost-p.Cost) / float64(maxCost) * r.Percentage)
	}
	return r
}

// UID is the history-store key: the hex MD5 of the canonical full_path
// string. The rendering is a stable wire format; changing it would orphan
// every historical record.
func UID(fullPath string) string {
	sum := md5.Sum([]byte(fullPath))
	return hex.EncodeToString(sum[:])
}

// ReplayQuery reconstructs the path as a name-qualified traversal that can
// be pasted into BloodHound for visualization.
func ReplayQuery(p paths.Path) string {
	var b strings.Builder
	fmt.Fprintf(&b, "match p=(({name:'%s'})", first(p.NodeLabels))
	for i, rel := range p.RelLabels {
		next := ""
		if i+1 < len(p.NodeLabels) {
			next = p.NodeLabels[i+1]
		}
		fmt.Fprintf(&b, "-[:%s]->({name:'%s'})", rel, next)
	}
	b.WriteString(") return p")
	return b.String()
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// Unique keeps the highest-risk path per starting node so one root cannot
// dominate the top results with several equivalent paths.
func Unique(in []Result) []Result {
	sorted := append([]Result(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartNode != sorted[j].StartNode {
			return sorted[i].StartNode < sorted[j].StartNode
		}
		return sorted[i].RiskScore > sorted[j].RiskScore
	})
	out := make([]Result, 0, len(sorted))
	for _, r := range sorted {
		if len(out) > 0 && out[len(out)-1].StartNode == r.StartNode {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Top sorts the results by the selected order and truncates to k.
// users: reach percentage descending. hops: hop count ascending.
// risk (default): risk score descending, then cost, then hops ascending.
func Top(in []Result, sortBy string, k int) []Result {
	out := append([]Result(nil), in...)
	switch sortBy {
	case SortUsers:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Percentage > out[j].Percentage
		})
	case SortHops:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Hops < out[j].Hops
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].RiskScore != out[j].RiskScore {
				return out[i].RiskScore > out[j].RiskScore
			}
			if out[i].Cost != out[j].Cost {
				return out[i].Cost < out[j].Cost
			}
			return out[i].Hops < out[j].Hops
		})
	}
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// GrandTotals summarizes a run for the report header table.
type GrandTotals struct {
	UsersWithPath  int
	UserPercentage float64
	TotalPaths     int
	PctSeenBefore  float64
	NewPaths       int
}

func Totals(uniqueUsersWithPath, totalEnabledNonAdmins, totalPaths, newPaths, seenBefore int) GrandTotals {
	t := GrandTotals{
		UsersWithPath: uniqueUsersWithPath,
		TotalPaths:    totalPaths,
		NewPaths:      newPaths,
	}
	if totalEnabledNonAdmins > 0 {
		t.UserPercentage = format.Round1(float64(uniqueUsersWithPath) / float64(totalEnabledNonAdmins) * 100)
	}
	if totalPaths > 0 {
		t.PctSeenBefore = format.Round1(float64(seenBefore) / float64(totalPaths) * 100)
	}
	return t
}
