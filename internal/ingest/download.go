package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
)

const maxDownloadBytes = 64 << 20 // 64 MiB per document

// Downloader fetches a registry project's documents into a local folder.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	robots     *RobotsChecker
	limiter    *Limiter
	maxDocs    int
	workers    int
	log        *zap.Logger
}

// NewDownloader creates a downloader from ingest configuration.
func NewDownloader(cfg config.IngestConfig, log *zap.Logger) *Downloader {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Downloader{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		limiter:    NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxDocs:    cfg.MaxDocs,
		workers:    cfg.DownloadWorkers,
		log:        log,
	}
	if d.workers <= 0 {
		d.workers = 4
	}
	if cfg.RespectRobots {
		d.robots = NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}
	return d
}

// DownloadProject scrapes the registry page for a project and downloads its
// documents into destDir. Individual document failures are logged and
// counted, not fatal; the call errors only when the page itself cannot be
// fetched or yields no links, or no document at all could be saved.
func (d *Downloader) DownloadProject(ctx context.Context, registry Registry, id, destDir string) (int, error) {
	pageURL := registry.DetailURL(id)
	if pageURL == "" {
		return 0, fmt.Errorf("no detail URL for registry %q", registry)
	}

	pageHTML, err := d.fetchPage(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("fetch project page: %w", err)
	}

	links, err := ExtractDocumentLinks(pageHTML, pageURL)
	if err != nil {
		return 0, fmt.Errorf("parse project page: %w", err)
	}
	if len(links) == 0 {
		return 0, fmt.Errorf("no document links on %s", pageURL)
	}
	if d.maxDocs > 0 && len(links) > d.maxDocs {
		links = links[:d.maxDocs]
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create project dir: %w", err)
	}

	d.log.Info("downloading project documents",
		zap.String("project", registry.ProjectID(id)),
		zap.Int("documents", len(links)))

	jobs := make(chan DocumentLink)
	var wg sync.WaitGroup
	var mu sync.Mutex
	saved := 0

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for link := range jobs {
				if err := d.downloadOne(ctx, link, destDir); err != nil {
					d.log.Warn("document download failed", zap.String("url", link.URL), zap.Error(err))
					continue
				}
				mu.Lock()
				saved++
				mu.Unlock()
			}
		}()
	}
	for _, link := range links {
		jobs <- link
	}
	close(jobs)
	wg.Wait()

	if saved == 0 {
		return 0, fmt.Errorf("all %d document downloads failed for %s", len(links), registry.ProjectID(id))
	}
	return saved, nil
}

func (d *Downloader) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := d.politeness(ctx, pageURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func (d *Downloader) downloadOne(ctx context.Context, link DocumentLink, destDir string) error {
	if err := d.politeness(ctx, link.URL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	name := documentFilename(link, resp.Header.Get("Content-Disposition"))
	dest := filepath.Join(destDir, name)
	if _, err := os.Stat(dest); err == nil {
		d.log.Debug("document already present", zap.String("file", name))
		return nil
	}

	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes)); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	d.log.Info("document saved", zap.String("file", name))
	return nil
}

func (d *Downloader) politeness(ctx context.Context, rawURL string) error {
	var crawlDelay time.Duration
	if d.robots != nil {
		allowed, delay, err := d.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
		crawlDelay = delay
	}
	return d.limiter.Wait(ctx, rawURL, crawlDelay)
}

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// documentFilename picks a filesystem-safe name for a downloaded document,
// preferring the Content-Disposition filename, then the link text, then the
// URL path, and guarantees a .pdf extension.
func documentFilename(link DocumentLink, contentDisposition string) string {
	name := ""
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			name = params["filename"]
		}
	}
	if name == "" {
		name = link.Name
	}
	if name == "" {
		name = path.Base(link.URL)
	}

	name = unsafeFilenameRe.ReplaceAllString(name, "_")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	if len(name) > 240 {
		name = name[:240]
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
