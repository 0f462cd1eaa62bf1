package musicbrainz

// https://musicbrainz.org/doc/MusicBrainz_API/Search#Release

type ReleaseList struct {
	Created  string    `json:"created"`
	Count    int       `json:"count"`
	Offset   int       `json:"offset"`
	Releases []Release `json:"releases"`
}

type Release struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	Barcode      string         `json:"barcode"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	ReleaseGroup *ReleaseGroup  `json:"release-group"`
	LabelInfo    []LabelInfo    `json:"label-info"`
	Media        []Medium       `json:"media"`
}

type ArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type ReleaseGroup struct {
	ID          string `json:"id"`
	PrimaryType string `json:"primary-type"`
}

type LabelInfo struct {
	CatalogNumber string `json:"catalog-number"`
	Label         *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"label"`
}

type Medium struct {
	Format     string `json:"format"`
	DiscCount  int    `json:"disc-count"`
	TrackCount int    `json:"track-count"`
}

// SearchResult is the flattened release used to prefill the add album form
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Year    string `json:"year,omitempty"`
	Type    string `json:"type,omitempty"`
	Label   string `json:"label,omitempty"`
	Barcode string `json:"barcode,omitempty"`
	Format  string `json:"format,omitempty"`
}
