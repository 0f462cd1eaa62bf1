package ctrlapi

import (
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.senan.xyz/crate/musicbrainz"
	"go.senan.xyz/crate/server/ctrlbase"
)

const minQueryLength = 2

type searchResponse struct {
	Results []musicbrainz.SearchResult `json:"results"`
	Total   int                        `json:"total"`
}

func (c *Controller) ServeSearchAlbums(r *http.Request) *ctrlbase.Response {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(query) < minQueryLength {
		return ctrlbase.Error(http.StatusBadRequest, "Query must be at least %d characters", minQueryLength)
	}
	list, err := c.musicBrainz.SearchReleases(r.Context(), query, musicbrainz.DefaultLimit)
	if err != nil {
		log.Printf("error searching releases: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Failed to search albums")
	}
	results := []musicbrainz.SearchResult{}
	for _, result := range musicbrainz.SummariseList(list) {
		if musicbrainz.IsLikelyVinyl(result) {
			results = append(results, result)
		}
	}
	return ctrlbase.JSON(searchResponse{
		Results: results,
		Total:   list.Count,
	})
}

type coverArtResponse struct {
	CoverArtURL *string `json:"coverArtUrl"`
	Available   bool    `json:"available"`
}

func (c *Controller) ServeCoverArt(r *http.Request) *ctrlbase.Response {
	mbid := r.URL.Query().Get("mbid")
	if mbid == "" {
		return ctrlbase.Error(http.StatusBadRequest, "Missing MusicBrainz ID")
	}
	coverURL, ok, err := c.musicBrainz.FrontCover(r.Context(), mbid)
	if err != nil {
		log.Printf("error checking front cover of %q: %v", mbid, err)
		return ctrlbase.JSON(coverArtResponse{})
	}
	if !ok {
		return ctrlbase.JSON(coverArtResponse{})
	}
	return ctrlbase.JSON(coverArtResponse{CoverArtURL: &coverURL, Available: true})
}
