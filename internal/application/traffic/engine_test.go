package traffic

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/infrastructure/browser"
)

// openStubPage opens a fresh context on site and navigates to the entry URL
func openStubPage(t *testing.T, site *browser.StubSite, entry string) (*browser.StubBrowsingContext, traffic.Page) {
	t.Helper()
	cap := browser.NewStubCapability(site)
	ctx := context.Background()
	bc, err := cap.Open(ctx, traffic.ContextOptions{})
	require.NoError(t, err)
	page, err := bc.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, entry, traffic.WaitDOMContentLoaded))
	stub, ok := bc.(*browser.StubBrowsingContext)
	require.True(t, ok)
	return stub, page
}

func TestEngine_Run_FollowsScoredLinks(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Link("/pricing", "Pricing and plans").
			Link("/misc", "Terms of service")).
		Page("/pricing", browser.NewStubPage("Pricing")).
		Page("/misc", browser.NewStubPage("Misc"))

	persona := fastPersona() // scores "pricing", not "terms"
	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(1)))

	require.NoError(t, err)
	assert.Equal(t, 2, result.PagesVisited)
	assert.Equal(t, []string{"/", "/pricing"}, bc.VisitedPaths(),
		"the only scored link must be followed")
}

// TestEngine_Run_WeightedLinkChoice repeats single-hop sessions over a page
// with a heavy-keyword link and a light-keyword link and checks the heavy
// one wins clearly more often.
func TestEngine_Run_WeightedLinkChoice(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Link("/alpha", "Premium alpha offer").
			Link("/beta", "Beta release notes")).
		Page("/alpha", browser.NewStubPage("Alpha")).
		Page("/beta", browser.NewStubPage("Beta"))

	persona := fastPersona()
	persona.GoalKeywords = map[string]int{"alpha": 10, "beta": 1}
	persona.GenericKeywords = nil

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	rng := rand.New(rand.NewSource(2))

	counts := map[string]int{}
	const trials = 200
	for i := 0; i < trials; i++ {
		bc, page := openStubPage(t, site, "https://site.test/")
		_, err := engine.Run(context.Background(), page, persona, rng)
		require.NoError(t, err)

		visited := bc.VisitedPaths()
		require.Len(t, visited, 2)
		counts[visited[1]]++
	}

	// Scores are 11 vs 2, so /alpha should take roughly 85% of the trials.
	assert.Equal(t, trials, counts["/alpha"]+counts["/beta"])
	assert.Greater(t, counts["/alpha"], counts["/beta"]*2,
		"heavier keyword weight must win clearly more often: %v", counts)
	assert.Greater(t, counts["/beta"], 0,
		"lighter links are chosen sometimes, not never")
}

func TestEngine_Run_ExcludesUnmatchedLinks(t *testing.T) {
	// No link matches any persona keyword, so every link scores 1 and is
	// excluded; exploration ends on the entry page.
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Link("/about", "About the team").
			Link("/blog", "Blog archive")).
		Page("/about", browser.NewStubPage("About")).
		Page("/blog", browser.NewStubPage("Blog"))

	persona := fastPersona()
	persona.GoalKeywords = map[string]int{"pricing": 10}
	persona.GenericKeywords = nil
	persona.NavigationDepth = traffic.IntRange{Min: 3, Max: 3}

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(3)))

	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesVisited)
	assert.Equal(t, []string{"/"}, bc.VisitedPaths())
}

func TestEngine_Run_RejectsOffsiteAndNonNavigableLinks(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Link("https://elsewhere.test/pricing", "Pricing elsewhere").
			Link("mailto:sales@site.test", "Email pricing team").
			Link("tel:+15550100", "Call pricing desk").
			Link("#pricing", "Pricing anchor").
			Link("javascript:void(0)", "Pricing popup"))

	persona := fastPersona()
	persona.NavigationDepth = traffic.IntRange{Min: 2, Max: 2}

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(4)))

	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesVisited, "cross-origin and non-navigable schemes are never followed")
	assert.Equal(t, []string{"/"}, bc.VisitedPaths())
}

func TestEngine_Run_SkipsHiddenLinks(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			HiddenLink("/pricing", "Pricing and plans")).
		Page("/pricing", browser.NewStubPage("Pricing"))

	persona := fastPersona()
	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(5)))

	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesVisited)
	assert.Equal(t, []string{"/"}, bc.VisitedPaths())
}

// TestEngine_Run_MissionFailureDegradesToExplorationOnce places personas on
// a linear chain of scored links. A failed mission walks its own hops, then
// exploration adds exactly its sampled depth on top, once.
func TestEngine_Run_MissionFailureDegradesToExplorationOnce(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").Link("/hop1", "resources one")).
		Page("/hop1", browser.NewStubPage("Hop 1").Link("/hop2", "resources two")).
		Page("/hop2", browser.NewStubPage("Hop 2").Link("/hop3", "resources three")).
		Page("/hop3", browser.NewStubPage("Hop 3").Link("/hop4", "resources four")).
		Page("/hop4", browser.NewStubPage("Hop 4"))

	persona := fastPersona()
	persona.GoalKeywords = map[string]int{"resources": 5}
	persona.GenericKeywords = nil
	persona.NavigationDepth = traffic.IntRange{Min: 1, Max: 1}
	persona.Goal = &traffic.Goal{
		Type:         traffic.MissionFindAndClick,
		FindAndClick: &traffic.FindAndClickParams{TargetText: "download"},
	}

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(6)))

	require.NoError(t, err)
	require.NotNil(t, result.Mission)
	assert.Equal(t, traffic.MissionFindAndClick, result.Mission.Type)
	assert.False(t, result.Mission.Accomplished)
	assert.Equal(t, MissionFailed, result.Mission.Status)
	// Entry page, one mission hop, one exploration hop. A second
	// exploration pass would visit /hop3 as well.
	assert.Equal(t, []string{"/", "/hop1", "/hop2"}, bc.VisitedPaths())
	assert.Equal(t, 3, result.PagesVisited)
}

func TestEngine_Run_AccomplishedMissionSkipsExploration(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Button("Download report", "").
			Link("/hop1", "resources one")).
		Page("/hop1", browser.NewStubPage("Hop 1"))

	persona := fastPersona()
	persona.GoalKeywords = map[string]int{"resources": 5}
	persona.Goal = &traffic.Goal{
		Type:         traffic.MissionFindAndClick,
		FindAndClick: &traffic.FindAndClickParams{TargetText: "download"},
	}

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	result, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(7)))

	require.NoError(t, err)
	require.NotNil(t, result.Mission)
	assert.True(t, result.Mission.Accomplished)
	assert.Equal(t, []string{"/"}, bc.VisitedPaths(),
		"an accomplished mission must not degrade to exploration")
	assert.Equal(t, []string{"Download report"}, bc.Clicked())
}

func TestEngine_Run_HumanModeInteracts(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").Link("/pricing", "Pricing and plans")).
		Page("/pricing", browser.NewStubPage("Pricing"))

	persona := fastPersona()
	persona.ScrollProbability = 1.0

	engine := NewEngine(traffic.ModeHuman, zap.NewNop())

	cap := browser.NewStubCapability(site)
	ctx := context.Background()
	// A small viewport keeps the scroll loop short
	bc, err := cap.Open(ctx, traffic.ContextOptions{
		Fingerprint: fingerprint.Fingerprint{Viewport: fingerprint.Viewport{Width: 200, Height: 100}},
	})
	require.NoError(t, err)
	page, err := bc.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, "https://site.test/", traffic.WaitDOMContentLoaded))

	_, err = engine.Run(ctx, page, persona, rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	stub := bc.(*browser.StubBrowsingContext)
	moves, scrolls := stub.MouseActivity()
	assert.GreaterOrEqual(t, moves, 2, "human mode moves the pointer")
	assert.GreaterOrEqual(t, scrolls, 1, "human mode scrolls with probability one")
}

func TestEngine_Run_BotModeSkipsPointerActivity(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").Link("/pricing", "Pricing and plans")).
		Page("/pricing", browser.NewStubPage("Pricing"))

	persona := fastPersona()
	persona.ScrollProbability = 1.0

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	_, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	moves, scrolls := bc.MouseActivity()
	assert.Zero(t, moves)
	assert.Zero(t, scrolls)
}

func TestEngine_Run_OpportunisticFormInteraction(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").
			Form(browser.NewStubForm().
				Attr("id", "newsletter").
				Field("email", "email").
				Submit("Subscribe", "/thanks")).
			Link("/pricing", "Pricing and plans")).
		Page("/pricing", browser.NewStubPage("Pricing")).
		Page("/thanks", browser.NewStubPage("Thanks"))

	persona := fastPersona()
	persona.CanFillForms = true
	persona.FormInteractionProbability = 1.0

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, site, "https://site.test/")

	_, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(10)))
	require.NoError(t, err)

	fills := bc.Fills()
	require.Contains(t, fills, "email")
	assert.Contains(t, fills["email"], "@", "email inputs get a synthetic address")
	assert.NotContains(t, bc.Clicked(), "Subscribe",
		"opportunistic interaction fills but never submits")
}

func TestEngine_Run_CancelledContext(t *testing.T) {
	persona := fastPersona()
	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	bc, page := openStubPage(t, browser.DefaultStubSite(), "https://site.test/")
	_ = bc

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx, page, persona, rand.New(rand.NewSource(11)))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.PagesVisited)
}

func TestEngine_Run_DwellStaysWithinBotBudget(t *testing.T) {
	site := browser.NewStubSite().
		Page("/", browser.NewStubPage("Start").Link("/pricing", "Pricing and plans")).
		Page("/pricing", browser.NewStubPage("Pricing"))

	// A dwell range that would take minutes in Human mode
	persona := fastPersona()
	persona.DwellTime = traffic.DurationRange{Min: 40 * time.Second, Max: 80 * time.Second}
	persona.NavigationDepth = traffic.IntRange{Min: 1, Max: 1}

	engine := NewEngine(traffic.ModeBot, zap.NewNop())
	_, page := openStubPage(t, site, "https://site.test/")

	start := time.Now()
	_, err := engine.Run(context.Background(), page, persona, rand.New(rand.NewSource(12)))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 10*time.Second, "bot mode compresses dwell pauses")
}
