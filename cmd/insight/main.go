package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/crawl"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/llm"
	"github.com/Damonbodine/sauce-rival-insight/internal/repository/postgres"
	"github.com/Damonbodine/sauce-rival-insight/internal/search"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/competitors"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/website"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func main() {
	godotenv.Load()

	// Flags
	description := flag.String("description", "", "Business description (required unless -business is set)")
	keywords := flag.String("keywords", "", "Comma-separated business keywords")
	websiteURL := flag.String("url", "", "Business website URL (enables website analysis)")
	businessID := flag.String("business", "", "Existing business ID to resume the pipeline for")
	skipWebsite := flag.Bool("skip-website", false, "Skip the website analysis stage")
	timeout := flag.Duration("timeout", 15*time.Minute, "Overall pipeline timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	if *description == "" && *businessID == "" {
		red.Println("✗ Either -description or -business is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		red.Printf("✗ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Keep service logs out of the terminal unless asked for
	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	printBanner()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.New(cfg.Database)
	if err != nil {
		red.Printf("✗ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	firecrawlClient, err := crawl.NewFirecrawlClient(cfg.Firecrawl)
	if err != nil {
		red.Printf("✗ %v\n", err)
		os.Exit(1)
	}
	exaClient, err := search.NewExaClient(cfg.Exa)
	if err != nil {
		red.Printf("✗ %v\n", err)
		os.Exit(1)
	}
	openaiClient, err := llm.NewOpenAIClient(cfg.OpenAI)
	if err != nil {
		red.Printf("✗ %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(db)
	guard := competitors.NewMemoryRunGuard()

	websiteAnalyzer := website.NewAnalyzer(firecrawlClient, openaiClient, repos.Businesses, logger)
	finder := competitors.NewFinder(repos.Businesses, repos.Competitors, exaClient, logger)
	crawler := competitors.NewCrawler(repos.Competitors, firecrawlClient, guard, cfg.Pipeline, cfg.Firecrawl.Policy(), logger)
	analyzer := competitors.NewAnalyzer(
		repos.Businesses,
		repos.Competitors,
		repos.RawContent,
		repos.Analyses,
		openaiClient,
		guard,
		nil,
		cfg.Pipeline,
		cfg.OpenAI.Policy(),
		logger,
	)

	startTime := time.Now()

	//==========================================================================
	// STEP 1: BUSINESS INTAKE
	//==========================================================================
	printStep(1, "Business Intake", "Registering the business")

	business, err := resolveBusiness(ctx, repos.Businesses, *businessID, *description, *keywords, *websiteURL)
	if err != nil {
		red.Printf("   ✗ %v\n", err)
		os.Exit(1)
	}
	green.Printf("   ✓ Business %s\n", business.ID)
	if len(business.Keywords) > 0 {
		dim.Printf("      keywords: %s\n", strings.Join(business.Keywords, ", "))
	}

	//==========================================================================
	// STEP 2: WEBSITE ANALYSIS
	//==========================================================================
	if !*skipWebsite && business.WebsiteURL != nil {
		printStep(2, "Website Analysis", fmt.Sprintf("Scraping %s", *business.WebsiteURL))

		result, err := runWithSpinner("   Analyzing website...", func() (*website.Result, error) {
			return websiteAnalyzer.Analyze(ctx, business.ID, *business.WebsiteURL)
		})
		if err != nil {
			yellow.Printf("   ⚠ Website analysis failed, continuing with declared description: %v\n", err)
		} else {
			green.Println("   ✓ Description and keywords refined from the live site")
			dim.Printf("      %s\n", truncate(result.Description, 120))
		}
	} else {
		printStep(2, "Website Analysis", "Skipped")
	}

	//==========================================================================
	// STEP 3: COMPETITOR DISCOVERY
	//==========================================================================
	printStep(3, "Competitor Discovery", "Searching for similar companies")

	count, err := runWithSpinner("   Searching...", func() (int, error) {
		return finder.Find(ctx, business.ID)
	})
	if err != nil {
		red.Printf("   ✗ Discovery failed: %v\n", err)
		os.Exit(1)
	}
	green.Printf("   ✓ Saved %d competitor sites\n", count)

	//==========================================================================
	// STEP 4: COMPETITOR CRAWL
	//==========================================================================
	printStep(4, "Competitor Crawl", "Submitting crawl jobs site by site")

	summary, err := runWithSpinner("   Crawling...", func() (*competitors.CrawlSummary, error) {
		return crawler.Run(ctx, business.ID)
	})
	if err != nil {
		red.Printf("   ✗ Crawl failed: %v\n", err)
		os.Exit(1)
	}
	if len(summary.Sites) == 0 {
		yellow.Println("   ⚠ No competitor sites were eligible for crawling")
	} else {
		green.Printf("   ✓ %s\n", summary.Message())
		for _, site := range summary.Sites {
			if site.Status == "success" {
				dim.Printf("      ✓ %s\n", site.Name)
			} else {
				dim.Printf("      ✗ %s\n", site.Name)
			}
		}
	}

	//==========================================================================
	// STEP 5: COMPETITOR ANALYSIS
	//==========================================================================
	printStep(5, "Competitor Analysis", "Extracting attributes and writing the narrative")

	analysis, err := runWithSpinner("   Analyzing...", func() (*domain.CompetitorAnalysis, error) {
		return analyzer.Analyze(ctx, business.ID)
	})
	if err != nil {
		red.Printf("   ✗ Analysis failed: %v\n", err)
		os.Exit(1)
	}
	green.Printf("   ✓ Analysis %s covering %d competitors\n", analysis.ID, len(analysis.Attributes))

	printReport(analysis)

	fmt.Println()
	bold.Printf("Done in %s\n", time.Since(startTime).Round(time.Second))
}

// resolveBusiness loads an existing business row or creates a new one
// from the CLI flags.
func resolveBusiness(ctx context.Context, businesses *postgres.BusinessRepository, id, description, keywords, websiteURL string) (*domain.BusinessInput, error) {
	if id != "" {
		businessID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid business ID %q", id)
		}
		return businesses.GetByID(ctx, businessID)
	}

	var kws []string
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	var url *string
	if websiteURL != "" {
		url = &websiteURL
	}

	business := domain.NewBusinessInput(description, kws, url)
	if err := businesses.Create(ctx, business); err != nil {
		return nil, err
	}
	return business, nil
}

// runWithSpinner animates a spinner while fn runs
func runWithSpinner[T any](description string, fn func() (T, error)) (T, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
	)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				bar.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()

	result, err := fn()
	close(done)
	bar.Finish()
	fmt.Println()
	return result, err
}

func printReport(analysis *domain.CompetitorAnalysis) {
	fmt.Println()
	bold.Println("━━━ Competitor Report ━━━")

	for _, competitor := range analysis.Attributes {
		fmt.Println()
		cyan.Printf("%s", competitor.Name)
		dim.Printf("  %s\n", competitor.URL)

		switch {
		case competitor.Attributes.Parsed != nil:
			attrs := competitor.Attributes.Parsed
			printAttr("Products", strings.Join(attrs.ProductTypes, ", "))
			printAttr("Pricing", attrs.PricePoints)
			printAttr("USPs", strings.Join(attrs.UniqueSellingPropositions, "; "))
			printAttr("Tone", attrs.ToneBranding)
			printAttr("Target", attrs.TargetCustomer)
		case competitor.Attributes.Unparsed != nil:
			yellow.Println("   ⚠ Reply could not be parsed; raw text kept")
			dim.Printf("      %s\n", truncate(competitor.Attributes.Unparsed.Raw, 200))
		case competitor.Attributes.Failed != nil:
			red.Printf("   ✗ %s\n", competitor.Attributes.Failed.Message)
		}
	}

	fmt.Println()
	bold.Println("Summary Insights")
	fmt.Println(indent(analysis.SummaryInsights, "   "))
}

func printAttr(label, value string) {
	if value == "" {
		return
	}
	dim.Printf("   %-9s", label+":")
	fmt.Printf(" %s\n", truncate(value, 150))
}

func printStep(num int, title, description string) {
	fmt.Println()
	bold.Printf("━━━ Step %d: %s ━━━\n", num, title)
	fmt.Printf("    %s\n", description)
}

func printBanner() {
	cyan.Println(`
╔══════════════════════════════════════════════╗
║       RIVAL INSIGHT: competitor intel        ║
║  intake > website > discover > crawl > LLM   ║
╚══════════════════════════════════════════════╝`)
	fmt.Println()
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
