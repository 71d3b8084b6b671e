package dump

// Page is a single decoded <page> element of a MediaWiki export.
type Page struct {
	Title     string
	Namespace int
	ID        int64
	// Redirect holds the redirect target title; empty when the page is not a redirect.
	Redirect  string
	Revisions []Revision
}

// IsRedirect reports whether the page carries a redirect marker.
func (p Page) IsRedirect() bool {
	return p.Redirect != ""
}

// Latest returns the revision consumed by ingestion, the first one in document order.
func (p Page) Latest() (Revision, bool) {
	if len(p.Revisions) == 0 {
		return Revision{}, false
	}
	return p.Revisions[0], true
}

// Revision is one <revision> of a page.
type Revision struct {
	ID          int64
	ParentID    *int64
	Timestamp   string
	Contributor Contributor
	Minor       bool
	Comment     string
	Model       string
	Format      string
	SHA1        string
	Text        Text
}

// Contributor identifies the author of a revision. Anonymous edits carry an IP and no username.
type Contributor struct {
	ID       int64
	Username string
	IP       string
}

// DisplayName returns the IP address for anonymous contributors, else the username.
func (c Contributor) DisplayName() string {
	if c.IP != "" {
		return c.IP
	}
	return c.Username
}

// Text is the revision payload together with its declared size in bytes.
type Text struct {
	Body  string
	Bytes int64
}
