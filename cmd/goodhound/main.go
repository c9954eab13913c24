package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/idnahacks/GoodHound/internal/history"
	"github.com/idnahacks/GoodHound/internal/neo4jgraph"
	"github.com/idnahacks/GoodHound/internal/paths"
	"github.com/idnahacks/GoodHound/internal/report"
	"github.com/idnahacks/GoodHound/internal/results"
	"github.com/idnahacks/GoodHound/internal/schema"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	var (
		server   string
		username string
		password string

		outputFormat string
		outputPath   string

		topK        int
		sortBy      string
		customQuery string

		schemaFile string
		patch41    bool

		dbSkip  bool
		sqlPath string

		parallel    int
		verbose     bool
		quiet       bool
		showVersion bool
	)

	flag.Usage = func() {
		const help = `GoodHound - BloodHound wrapper to determine the Busiest Attack Paths to High Value targets.

USAGE:
  goodhound [connection] [query parameters] [output]

CONNECTION:
  -s/--server <bolt://...>   (default bolt://localhost:7687)
  -u/--username <user>       (default neo4j)
  -p/--password <pass>       (default neo4j)

QUERY PARAMETERS:
  -r/--results <n>           number of busiest paths/weakest links to report (default 5)
  --sort <users|hops|risk>   final ordering (default risk)
  --query <cypher>           replace the default busiest-paths query (must return
                             the same columns as the default)

SCHEMA:
  -sch/--schema <file>       custom Cypher statements to run first, one per line
  --patch41                  patch null highvalue attributes (BloodHound 4.1 bug)

OUTPUT:
  -o/--output-format <stdout|csv|md|markdown|html|xlsx>  (default stdout)
  -f/--output-filepath <dir> directory for file outputs (default current dir)

SQLITE DATABASE:
  --db-skip                  skip logging attack paths to the local database
  -sqlpath/--sql-path <path> file or directory for goodhound.db (default current dir)

MISC:
  --parallel <n>             concurrent group expansions (default 4)
  -v/--verbose               debug logging
  -q/--quiet                 suppress banner and progress output

Attackers think in graphs, Defenders think in actions, Management think in charts.

FLAGS (including aliases):
`
		fmt.Fprint(os.Stderr, help)
		flag.PrintDefaults()
	}

	flag.StringVar(&username, "u", "neo4j", "Neo4j database username")
	flag.StringVar(&username, "username", "neo4j", "Neo4j database username")
	flag.StringVar(&password, "p", "neo4j", "Neo4j database password")
	flag.StringVar(&password, "password", "neo4j", "Neo4j database password")
	flag.StringVar(&server, "s", "bolt://localhost:7687", "Neo4j server URI")
	flag.StringVar(&server, "server", "bolt://localhost:7687", "Neo4j server URI")
	flag.StringVar(&outputFormat, "o", "stdout", "output format: stdout|csv|md|markdown|html|xlsx")
	flag.StringVar(&outputFormat, "output-format", "stdout", "output format: stdout|csv|md|markdown|html|xlsx")
	flag.StringVar(&outputPath, "f", ".", "directory for file outputs")
	flag.StringVar(&outputPath, "output-filepath", ".", "directory for file outputs")
	flag.IntVar(&topK, "r", 5, "number of busiest paths to report")
	flag.IntVar(&topK, "results", 5, "number of busiest paths to report")
	flag.StringVar(&sortBy, "sort", "risk", "sort results by: users|hops|risk")
	flag.StringVar(&customQuery, "query", "", "custom busiest-paths query")
	flag.StringVar(&schemaFile, "sch", "", "file of custom schema Cypher statements")
	flag.StringVar(&schemaFile, "schema", "", "file of custom schema Cypher statements")
	flag.BoolVar(&patch41, "patch41", false, "patch null highvalue attributes")
	flag.BoolVar(&dbSkip, "db-skip", false, "skip the local SQLite attack path history")
	flag.StringVar(&sqlPath, "sqlpath", ".", "file or directory for the SQLite database")
	flag.StringVar(&sqlPath, "sql-path", ".", "file or directory for the SQLite database")
	flag.IntVar(&parallel, "parallel", 4, "concurrent group expansions")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.BoolVar(&verbose, "verbose", false, "debug logging")
	flag.BoolVar(&quiet, "q", false, "suppress banner and progress output")
	flag.BoolVar(&quiet, "quiet", false, "suppress banner and progress output")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("goodhound %s\n", version)
		if commit != "" {
			fmt.Printf("commit: %s\n", commit)
		}
		return
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	switch {
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	if sortBy != results.SortUsers && sortBy != results.SortHops && sortBy != results.SortRisk {
		fatalf("invalid --sort %q (expected: users|hops|risk)", sortBy)
	}
	outputFormat = strings.ToLower(strings.TrimSpace(outputFormat))
	switch outputFormat {
	case "stdout", "csv", "md", "markdown", "html", "xlsx":
	default:
		fatalf("invalid --output-format %q (expected: stdout|csv|md|markdown|html|xlsx)", outputFormat)
	}
	if topK < 1 {
		fatalf("invalid --results %d (must be at least 1)", topK)
	}
	if outputFormat != "stdout" && outputFormat != "md" && outputFormat != "markdown" {
		if err := report.EnsureDir(outputPath); err != nil {
			fatalf("output location: %v", err)
		}
	}

	if !quiet {
		banner()
	}

	ctx := context.Background()
	startTime := time.Now()

	graph, err := neo4jgraph.Connect(ctx, server, username, password)
	if err != nil {
		log.Error().Err(err).Msg("Database connection failure.")
		os.Exit(1)
	}
	defer graph.Close(ctx)

	if !quiet {
		fmt.Fprintln(os.Stderr, "Warming up database")
	}
	graph.Warmup(ctx)

	if schemaFile != "" {
		if err := schema.ApplyFile(ctx, graph, schemaFile); err != nil {
			fatalf("error setting custom schema: %v", err)
		}
	}
	if err := schema.SetCosts(ctx, graph); err != nil {
		fatalf("error setting cost: %v", err)
	}
	if patch41 {
		if err := schema.PatchHighValue(ctx, graph); err != nil {
			fatalf("error patching highvalue attribute: %v", err)
		}
	}
	if err := schema.ElevateDCSyncers(ctx, graph); err != nil {
		fatalf("error elevating DCSync principals: %v", err)
	}

	if !quiet {
		fmt.Fprintln(os.Stderr, "Sniffing out attack paths from groups, this may take a while.")
	}
	groupPaths, err := paths.EnumerateGroups(ctx, graph, customQuery)
	if err != nil {
		fatalf("%v", err)
	}
	log.Info().Dur("elapsed", time.Since(startTime)).Int("paths", len(groupPaths)).Msg("finished group query")

	var userPaths []paths.Path
	if len(groupPaths) == 0 {
		if !quiet {
			fmt.Fprintln(os.Stderr, "Digging for users with paths. This can also take some time.")
		}
		userPaths, err = paths.EnumerateUsers(ctx, graph)
		if err != nil {
			fatalf("%v", err)
		}
		log.Info().Int("paths", len(userPaths)).Msg("finished user query")
	}

	if len(groupPaths)+len(userPaths) == 0 {
		fmt.Println("You have no paths to high value targets. Congratulations!")
		return
	}

	totalEnabledNonAdmins, err := paths.TotalEnabledNonAdmins(ctx, graph)
	if err != nil {
		fatalf("%v", err)
	}

	roots := paths.UniqueStartGroups(groupPaths)
	if !quiet {
		fmt.Fprintln(os.Stderr, "Fetching users of groups.")
	}
	progress := func(string) {}
	if !quiet && len(roots) > 0 {
		bar := progressbar.NewOptions(len(roots),
			progressbar.OptionSetDescription("Expanding groups..."),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("groups"),
			progressbar.OptionThrottle(time.Second),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
		progress = func(string) { _ = bar.Add(1) }
	}
	membership, err := paths.ExpandMembers(ctx, paths.NewMemberSource(graph), roots, paths.ExpandOptions{
		Workers:  parallel,
		Progress: progress,
	})
	if err != nil {
		fatalf("%v", err)
	}

	allResults := results.Generate(groupPaths, userPaths, membership, totalEnabledNonAdmins)

	scanDate, scanDateNice, err := schema.ScanDate(ctx, graph)
	if err != nil {
		log.Warn().Err(err).Msg("could not determine scan date from the graph; skipping history")
		dbSkip = true
		scanDateNice = time.Now().UTC().Format("2006-01-02")
	}

	newPaths, seenBefore := 0, 0
	if !dbSkip {
		store, err := history.Open(sqlPath)
		if err != nil {
			log.Warn().Err(err).Msg("history store unavailable; continuing without path history")
		} else {
			newPaths, seenBefore, err = store.Record(allResults, scanDate)
			if err != nil {
				log.Warn().Err(err).Msg("recording path history failed")
			}
			_ = store.Close()
		}
	}

	unique := results.Unique(allResults)
	top := results.Top(unique, sortBy, topK)

	allPaths := append(append([]paths.Path(nil), groupPaths...), userPaths...)
	totalPaths := len(allPaths)
	weakest := paths.WeakestLinks(allPaths, totalPaths, topK)

	rep := &report.Report{
		ScanDate: scanDateNice,
		Totals:   results.Totals(paths.TotalUniqueUsers(membership, userPaths), totalEnabledNonAdmins, totalPaths, newPaths, seenBefore),
		Busiest:  top,
		Weakest:  weakest,
	}

	switch outputFormat {
	case "stdout":
		if err := rep.WriteStdout(os.Stdout); err != nil {
			fatalf("write report: %v", err)
		}
	case "md", "markdown":
		if err := rep.WriteMarkdown(os.Stdout); err != nil {
			fatalf("write report: %v", err)
		}
	case "csv":
		files, err := rep.WriteCSVFiles(outputPath)
		if err != nil {
			fatalf("write csv reports: %v", err)
		}
		fmt.Fprintf(os.Stderr, "CSV reports written: %s\n", strings.Join(files, ", "))
	case "html":
		path, err := rep.WriteHTML(outputPath)
		if err != nil {
			fatalf("write html report: %v", err)
		}
		fmt.Fprintf(os.Stderr, "HTML report written: %s\n", path)
	case "xlsx":
		path, err := rep.WriteXLSX(outputPath)
		if err != nil {
			fatalf("write xlsx report: %v", err)
		}
		fmt.Fprintf(os.Stderr, "XLSX report written: %s\n", path)
	}

	log.Info().Dur("total", time.Since(startTime)).Msg("run complete")
	if !quiet {
		fmt.Println("Attack Paths sniffed out. Woof woof!")
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	fmt.Fprintf(os.Stderr, "hint: run with -h for usage\n")
	os.Exit(1)
}

func banner() {
	fmt.Println(`   ______                ____  __                      __`)
	fmt.Println(`  / ____/___  ____  ____/ / / / /___  __  ______  ____/ /`)
	fmt.Println(` / / __/ __ \/ __ \/ __  / /_/ / __ \/ / / / __ \/ __  / `)
	fmt.Println(`/ /_/ / /_/ / /_/ / /_/ / __  / /_/ / /_/ / / / / /_/ /  `)
	fmt.Println(`\____/\____/\____/\__,_/_/ /_/\____/\__,_/_/ /_/\__,_/   `)
	fmt.Println()
}
