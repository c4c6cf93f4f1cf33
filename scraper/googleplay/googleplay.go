package googleplay

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/services"
	"app-reviews-pipeline/utils"
)

const storeBase = "https://play.google.com/store"

var (
	starsRegexp   = regexp.MustCompile(`(?i)rated\s+(\d)`)
	helpfulRegexp = regexp.MustCompile(`([\d,]+)\s+(?:people|person)`)
	scoreRegexp   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countRegexp   = regexp.MustCompile(`(?i)([\d.,]+\s*[kmb]?)\+?`)
)

// Scraper collects app metadata and reviews from the Play Store web UI.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	pool    *utils.WorkerPool
	visited utils.KeySet
	retry   *utils.RetryConfig

	mu      sync.Mutex
	apps    []*models.RawApp
	reviews []*models.RawReview
}

// New creates a ready-to-use Play Store Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Scrape resolves the target apps, then fetches each app's listing and its
// visible reviews. Per-app failures are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.RawApp, []*models.RawReview, error) {
	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[googleplay] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	appIDs := s.cfg.AppIDs
	if len(appIDs) == 0 {
		var err error
		appIDs, err = s.search(browserCtx)
		if err != nil {
			return nil, nil, fmt.Errorf("googleplay: search %q: %w", s.cfg.SearchQuery, err)
		}
	}
	s.logger.Info("[googleplay] %d apps to collect", len(appIDs))

	for _, id := range appIDs {
		appID := id
		if !s.visited.Add(appID) {
			continue
		}
		if !s.pool.SubmitContext(browserCtx, func() {
			app, reviews, err := s.scrapeApp(browserCtx, appID)
			if err != nil {
				s.logger.Warn("[googleplay] %s failed: %v", appID, err)
				return
			}
			s.mu.Lock()
			s.apps = append(s.apps, app)
			s.reviews = append(s.reviews, reviews...)
			s.mu.Unlock()
			s.logger.Info("[googleplay] %s: %d reviews", appID, len(reviews))
		}) {
			break
		}
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.logger.Info("[googleplay] Scrape complete: %d apps, %d reviews", len(s.apps), len(s.reviews))
	return s.apps, s.reviews, nil
}

// search returns up to SearchHits app ids for the configured query.
func (s *Scraper) search(browserCtx context.Context) ([]string, error) {
	var hrefs []string

	err := s.retry.DoContext(browserCtx, "search", func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		return chromedp.Run(ctx,
			chromedp.Navigate(searchURL(s.cfg.SearchQuery, s.cfg.Lang, s.cfg.Country)),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`
				Array.from(document.querySelectorAll('a[href*="/store/apps/details?id="]'))
					.map(function(a) { return a.href; })
			`, &hrefs),
		)
	})
	if err != nil {
		return nil, err
	}

	seen := utils.NewKeySet()
	var ids []string
	for _, h := range hrefs {
		id := appIDFromHref(h)
		if id == "" || !seen.Add(id) {
			continue
		}
		ids = append(ids, id)
		if len(ids) >= s.cfg.SearchHits {
			break
		}
	}
	return ids, nil
}

type listingData struct {
	Title     string `json:"title"`
	Developer string `json:"developer"`
	Genre     string `json:"genre"`
	Score     string `json:"score"`
	Ratings   string `json:"ratings"`
	Installs  string `json:"installs"`
	Price     string `json:"price"`
}

type reviewData struct {
	ID      string `json:"id"`
	User    string `json:"user"`
	Stars   string `json:"stars"`
	Date    string `json:"date"`
	Content string `json:"content"`
	Helpful string `json:"helpful"`
}

// scrapeApp loads the details page, reads the listing header, then opens the
// reviews dialog and scrolls it until ReviewsPerApp reviews are loaded.
func (s *Scraper) scrapeApp(browserCtx context.Context, appID string) (*models.RawApp, []*models.RawReview, error) {
	var listing listingData
	var cards []reviewData
	pageURL := detailsURL(appID, s.cfg.Lang, s.cfg.Country)

	err := s.retry.DoContext(browserCtx, "details-"+appID, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, 120*time.Second)
		defer cancelTimeout()

		actions := []chromedp.Action{
			chromedp.Navigate(pageURL),
			chromedp.Sleep(4 * time.Second),
			chromedp.Evaluate(`
				(function() {
					function text(sel) {
						var el = document.querySelector(sel);
						return el ? el.innerText.trim() : '';
					}
					var stats = Array.from(document.querySelectorAll('div.wVqUob, div[class*="ClM7O"]'))
						.map(function(el) { return el.innerText.trim(); });
					var installs = stats.find(function(t) { return /downloads/i.test(t); }) || '';
					var ratings = stats.find(function(t) { return /reviews/i.test(t); }) || '';
					var genre = document.querySelector('a[href*="/store/apps/category/"]');
					var price = document.querySelector('button[aria-label*="Buy"], button[aria-label*="$"]');
					return {
						title:     text('h1'),
						developer: text('a[href*="/store/apps/dev"] span, a[href*="/store/apps/developer"] span'),
						genre:     genre ? genre.innerText.trim() : '',
						score:     text('div[itemprop="starRating"] div, div.TT9eCd'),
						ratings:   ratings.split('\n')[0],
						installs:  installs.split('\n')[0],
						price:     price ? price.getAttribute('aria-label') : 'Free'
					};
				})()
			`, &listing),
		}

		if s.cfg.ReviewsPerApp > 0 {
			actions = append(actions,
				chromedp.Evaluate(`
					(function() {
						var btn = Array.from(document.querySelectorAll('button, span'))
							.find(function(el) { return /see all reviews/i.test(el.innerText || ''); });
						if (btn) btn.click();
						return !!btn;
					})()
				`, nil),
				chromedp.Sleep(3*time.Second),
				chromedp.Evaluate(fmt.Sprintf(`
					(async function() {
						var dialog = document.querySelector('div[role="dialog"] div.fysCi') ||
						             document.querySelector('div[role="dialog"]');
						for (var i = 0; i < 40 && dialog; i++) {
							if (document.querySelectorAll('div.RHo1pe').length >= %d) break;
							dialog.scrollTop = dialog.scrollHeight;
							await new Promise(function(r) { setTimeout(r, 800); });
						}
						return true;
					})()
				`, s.cfg.ReviewsPerApp), nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
					return p.WithAwaitPromise(true)
				}),
				chromedp.Evaluate(`
					Array.from(document.querySelectorAll('div.RHo1pe')).map(function(card) {
						function text(sel) {
							var el = card.querySelector(sel);
							return el ? el.innerText.trim() : '';
						}
						var header = card.querySelector('header[data-review-id]');
						var stars = card.querySelector('div[role="img"][aria-label]');
						return {
							id:      header ? header.getAttribute('data-review-id') : '',
							user:    text('div.X5PpBb'),
							stars:   stars ? stars.getAttribute('aria-label') : '',
							date:    text('span.bp9Aid'),
							content: text('div.h3YV2d'),
							helpful: text('div.AJTPZc')
						};
					})
				`, &cards),
			)
		}

		return chromedp.Run(ctx, actions...)
	})
	if err != nil {
		return nil, nil, err
	}

	app := toRawApp(appID, pageURL, listing)
	reviews := make([]*models.RawReview, 0, len(cards))
	for _, c := range cards {
		if len(reviews) >= s.cfg.ReviewsPerApp {
			break
		}
		reviews = append(reviews, toRawReview(appID, c))
	}
	return app, reviews, nil
}

func toRawApp(appID, pageURL string, d listingData) *models.RawApp {
	app := &models.RawApp{
		AppID:     appID,
		Title:     d.Title,
		Developer: d.Developer,
		Genre:     d.Genre,
		Installs:  d.Installs,
		Price:     d.Price,
		URL:       pageURL,
	}
	if f, ok := parseScore(d.Score); ok {
		app.Score = &f
	}
	app.Ratings = parseCount(d.Ratings)
	return app
}

func toRawReview(appID string, d reviewData) *models.RawReview {
	id := d.ID
	if id == "" {
		id = fallbackReviewID(appID, d.User, d.Date, d.Content)
	}
	return &models.RawReview{
		AppID:         appID,
		ReviewID:      id,
		UserName:      d.User,
		Score:         parseStarLabel(d.Stars),
		Content:       d.Content,
		ThumbsUpCount: parseHelpful(d.Helpful),
		At:            d.Date,
	}
}

func searchURL(query, lang, country string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("c", "apps")
	v.Set("hl", lang)
	v.Set("gl", country)
	return storeBase + "/search?" + v.Encode()
}

func detailsURL(appID, lang, country string) string {
	v := url.Values{}
	v.Set("id", appID)
	v.Set("hl", lang)
	v.Set("gl", country)
	return storeBase + "/apps/details?" + v.Encode()
}

// appIDFromHref extracts the package name from a details link.
func appIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil || !strings.HasSuffix(u.Path, "/apps/details") {
		return ""
	}
	return u.Query().Get("id")
}

// parseStarLabel reads "Rated 4 stars out of five stars". Unreadable labels
// yield 0, which the pipeline later rejects as out of range.
func parseStarLabel(label string) int {
	m := starsRegexp.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// parseHelpful reads "1,204 people found this review helpful".
func parseHelpful(text string) int {
	m := helpfulRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func parseScore(text string) (float64, bool) {
	m := scoreRegexp.FindString(text)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || f < 0 || f > 5 {
		return 0, false
	}
	return f, true
}

// parseCount reads "1.2M reviews" or "35K".
func parseCount(text string) *int64 {
	m := countRegexp.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return services.ParseInstalls(strings.TrimSpace(m[1]))
}

// fallbackReviewID derives a stable id for reviews whose markup carries none,
// so repeated acquisitions of the same review dedup downstream.
func fallbackReviewID(appID, user, date, content string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(appID+"\x00"+user+"\x00"+date+"\x00"+content)).String()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
