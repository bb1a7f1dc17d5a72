package domain

// FileInfo describes an uploaded local file.
type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
}

// LocalFile is one entry of the local file list.
type LocalFile struct {
	File FileInfo `json:"file"`
}

// OnlineDocumentPage is a page selected from an online document workspace,
// kept exactly as the client sent it.
type OnlineDocumentPage map[string]any

func (p OnlineDocumentPage) WorkspaceID() string { return stringField(p, "workspace_id") }
func (p OnlineDocumentPage) PageID() string      { return stringField(p, "page_id") }
func (p OnlineDocumentPage) Title() string       { return stringField(p, "title") }

// WebsitePage is a crawled page, kept exactly as the client sent it.
// Crawlers report the address as either source_url or url.
type WebsitePage map[string]any

// URL returns source_url, falling back to url.
func (p WebsitePage) URL() string {
	if u := stringField(p, "source_url"); u != "" {
		return u
	}
	return stringField(p, "url")
}

func (p WebsitePage) Title() string { return stringField(p, "title") }

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// OnlineDriveFile is an entry of an online drive listing.
type OnlineDriveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CrawlStep tracks the progress of a website crawl.
type CrawlStep string

const (
	CrawlStepInit     CrawlStep = "init"
	CrawlStepRunning  CrawlStep = "running"
	CrawlStepFinished CrawlStep = "finished"
)

// CrawlResult is the outcome of a website crawl.
type CrawlResult struct {
	Data          []WebsitePage `json:"data"`
	TimeConsuming float64       `json:"time_consuming"`
}

func takeString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
