package musicbrainz

import "strings"

const UnknownArtist = "Unknown Artist"

func Summarise(release Release) SearchResult {
	result := SearchResult{
		ID:      release.ID,
		Title:   release.Title,
		Artist:  UnknownArtist,
		Barcode: release.Barcode,
	}
	if len(release.ArtistCredit) > 0 && release.ArtistCredit[0].Name != "" {
		result.Artist = release.ArtistCredit[0].Name
	}
	if release.Date != "" {
		result.Year, _, _ = strings.Cut(release.Date, "-")
	}
	if release.ReleaseGroup != nil {
		result.Type = release.ReleaseGroup.PrimaryType
	}
	if len(release.LabelInfo) > 0 && release.LabelInfo[0].Label != nil {
		result.Label = release.LabelInfo[0].Label.Name
	}
	if len(release.Media) > 0 {
		result.Format = release.Media[0].Format
	}
	return result
}

func SummariseList(list ReleaseList) []SearchResult {
	results := make([]SearchResult, 0, len(list.Releases))
	for _, release := range list.Releases {
		results = append(results, Summarise(release))
	}
	return results
}

// IsLikelyVinyl keeps release types that are commonly pressed to vinyl. an
// unknown type is kept too
func IsLikelyVinyl(result SearchResult) bool {
	switch result.Type {
	case "", "Album", "EP", "Single":
		return true
	default:
		return false
	}
}
