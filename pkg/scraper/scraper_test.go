package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PentesterFlow/storescrape/internal/output"
)

const (
	astroURL = "https://store.playstation.com/en-rs/product/EP9000-PPSA01234_00-ASTROBOT00000000"
	gowURL   = "https://store.playstation.com/en-rs/product/EP9000-PPSA08332_00-GOWRAGNAROK00000"
	deadURL  = "https://store.playstation.com/en-rs/product/EP0000-GONE"
)

func TestRunBatch_OneRecordPerTargetInOrder(t *testing.T) {
	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	s.pages[gowURL] = productPage("God of War Ragnarök", "$69.99")
	sc := newTestScraper(t, s)

	records := sc.RunBatch(context.Background(), []string{astroURL, gowURL}, 0)

	require.Len(t, records, 2)
	assert.Equal(t, astroURL, records[0].URL)
	assert.Equal(t, "Astro Bot", records[0].Title)
	assert.Equal(t, "$59.99", records[0].Price)
	assert.Equal(t, gowURL, records[1].URL)
	assert.Equal(t, "$69.99", records[1].Price)
	assert.False(t, records[0].Failed())
	assert.Equal(t, []string{astroURL, gowURL}, s.visits())

	snap := sc.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TargetsTotal)
	assert.Equal(t, int64(2), snap.TargetsSucceeded)
}

func TestRunBatch_EmptyList(t *testing.T) {
	s := newSite()
	sc := newTestScraper(t, s)

	records := sc.RunBatch(context.Background(), nil, 0)

	assert.Empty(t, records)
	assert.Zero(t, s.contexts)
}

func TestRunBatch_FailureIsIsolated(t *testing.T) {
	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	s.pages[gowURL] = productPage("God of War Ragnarök", "$69.99")
	s.navFail[deadURL] = true
	sc := newTestScraper(t, s)

	records := sc.RunBatch(context.Background(), []string{astroURL, deadURL, gowURL}, 0)

	require.Len(t, records, 3)
	assert.False(t, records[0].Failed())
	assert.True(t, records[1].Failed())
	assert.Equal(t, deadURL, records[1].URL)
	assert.Nil(t, records[1].Details)
	assert.Contains(t, records[1].Error, "ERR_NAME_NOT_RESOLVED")
	assert.False(t, records[2].Failed())
	assert.Equal(t, "God of War Ragnarök", records[2].Title)

	snap := sc.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TargetsFailed)
	assert.Equal(t, int64(1), snap.ErrorCounts["navigation"])
}

func TestRunBatch_PanicBecomesErrorRecord(t *testing.T) {
	s := newSite()
	s.pages[gowURL] = productPage("God of War Ragnarök", "$69.99")
	s.panicOn[astroURL] = true
	sc := newTestScraper(t, s)

	records := sc.RunBatch(context.Background(), []string{astroURL, gowURL}, 0)

	require.Len(t, records, 2)
	assert.True(t, records[0].Failed())
	assert.Contains(t, records[0].Error, "renderer crashed")
	assert.False(t, records[1].Failed())
}

func TestRunBatch_CancellationFillsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	s.onEval = func(string) { cancel() }
	sc := newTestScraper(t, s)

	records := sc.RunBatch(ctx, []string{astroURL, gowURL, deadURL}, 0)

	require.Len(t, records, 3)
	assert.False(t, records[0].Failed())
	for _, r := range records[1:] {
		assert.True(t, r.Failed(), r.URL)
		assert.Contains(t, r.Error, "cancelled")
	}
	assert.Equal(t, []string{astroURL}, s.visits())
}

func TestRunBatch_StreamsRecords(t *testing.T) {
	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	s.navFail[deadURL] = true
	var buf bytes.Buffer
	sc := newTestScraper(t, s, WithStream(&buf))

	sc.RunBatch(context.Background(), []string{astroURL, deadURL}, 0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"type":"record"`)
	assert.Contains(t, lines[1], `"type":"error"`)
}

func TestScrapeDetails_WritesFile(t *testing.T) {
	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	sc := newTestScraper(t, s)

	summary, err := sc.ScrapeDetails(context.Background(), []string{astroURL})
	require.NoError(t, err)

	assert.Equal(t, ModeDetails, summary.Mode)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, sc.RunID(), summary.RunID)
	assert.Equal(t, filepath.Join(sc.Config().Output.Dir, output.DefaultDetailsFile), summary.OutputPath)

	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Astro Bot", got[0]["title"])
	assert.Equal(t, astroURL, got[0]["url"])
}

func TestScrapeDetails_NothingWrittenForEmptyList(t *testing.T) {
	sc := newTestScraper(t, newSite())

	summary, err := sc.ScrapeDetails(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, summary.OutputPath)
	_, err = os.Stat(filepath.Join(sc.Config().Output.Dir, output.DefaultDetailsFile))
	assert.True(t, os.IsNotExist(err))
}

func TestRunListing_ProductLayout(t *testing.T) {
	s := newSite()
	sc := newTestScraper(t, s)
	target := ListingQuery{}.URL(sc.Config().Listing)
	s.pages[target] = catalogPage([2]string{"Astro Bot", "RSD 6.999"}, [2]string{"Gran Turismo 7", "RSD 8.999"})

	listings, err := sc.RunListing(context.Background(), ListingQuery{})
	require.NoError(t, err)

	require.Len(t, listings, 2)
	assert.Equal(t, "Astro Bot", listings[0].Title)
	assert.Equal(t, "RSD 6.999", listings[0].Price)
	assert.Equal(t, "https://store.playstation.com/en-rs/product/ID0", listings[0].Link)
	assert.Equal(t, []string{target}, s.visits())
}

func TestRunListing_FallsBackToAlternateCategory(t *testing.T) {
	s := newSite()
	sc := newTestScraper(t, s)
	cfg := sc.Config().Listing
	alternate := ListingQuery{Category: cfg.AlternateCategory}.URL(cfg)
	s.pages[alternate] = tilePage([2]string{"Helldivers 2", "RSD 4.999"})

	listings, err := sc.RunListing(context.Background(), ListingQuery{})
	require.NoError(t, err)

	require.Len(t, listings, 1)
	assert.Equal(t, "Helldivers 2", listings[0].Title)
	assert.Equal(t, "RSD 4.999", listings[0].Price)
	assert.Equal(t, []string{ListingQuery{}.URL(cfg), alternate}, s.visits())
}

func TestRunListing_SearchDoesNotFallBack(t *testing.T) {
	s := newSite()
	sc := newTestScraper(t, s)

	listings, err := sc.RunListing(context.Background(), ListingQuery{Search: "astro bot"})
	require.NoError(t, err)

	assert.Empty(t, listings)
	assert.Equal(t, []string{"https://store.playstation.com/en-rs/search/astro%20bot"}, s.visits())
}

func TestRun_MissingInputSwitchesToListing(t *testing.T) {
	s := newSite()
	sc := newTestScraper(t, s, WithInputFile(filepath.Join(t.TempDir(), "missing.txt")))
	target := ListingQuery{}.URL(sc.Config().Listing)
	s.pages[target] = catalogPage([2]string{"Astro Bot", "RSD 6.999"})

	summary, err := sc.Run(context.Background(), ListingQuery{})
	require.NoError(t, err)

	assert.Equal(t, ModeListing, summary.Mode)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, filepath.Join(sc.Config().Output.Dir, output.DefaultListingFile), summary.OutputPath)
}

func TestRun_InputFileDrivesDetails(t *testing.T) {
	input := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("# wishlist\n"+astroURL+"\n\n"), 0644))

	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	sc := newTestScraper(t, s, WithInputFile(input))

	summary, err := sc.Run(context.Background(), ListingQuery{})
	require.NoError(t, err)

	assert.Equal(t, ModeDetails, summary.Mode)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{astroURL}, s.visits())
}

func TestRun_EmptyInputSwitchesToListing(t *testing.T) {
	input := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("# nothing yet\n"), 0644))

	sc := newTestScraper(t, newSite(), WithInputFile(input))

	summary, err := sc.Run(context.Background(), ListingQuery{NoFallback: true})
	require.NoError(t, err)
	assert.Equal(t, ModeListing, summary.Mode)
	assert.Zero(t, summary.Total)
}

func TestListingQuery_URL(t *testing.T) {
	cfg := DefaultConfig().Listing

	tests := []struct {
		name string
		q    ListingQuery
		want string
	}{
		{"default category", ListingQuery{}, "https://store.playstation.com/en-rs/category/games"},
		{"explicit category", ListingQuery{Category: "ps5"}, "https://store.playstation.com/en-rs/category/ps5"},
		{"search wins", ListingQuery{Search: "gran turismo", Category: "ps5"}, "https://store.playstation.com/en-rs/search/gran%20turismo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.URL(cfg))
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := newSite()
	s.pages[astroURL] = productPage("Astro Bot", "$59.99")
	sc := newTestScraper(t, s)
	sc.RunBatch(context.Background(), []string{astroURL}, 0)

	assert.NoError(t, sc.Close())
	assert.NoError(t, sc.Close())
}
