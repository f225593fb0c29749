package anilist

// DefaultSort is applied when a search request omits the sort order.
const DefaultSort = "SCORE_DESC"

// mediaSorts is the AniList MediaSort enum.
var mediaSorts = map[string]struct{}{
	"ID": {}, "ID_DESC": {},
	"TITLE_ROMAJI": {}, "TITLE_ROMAJI_DESC": {},
	"TITLE_ENGLISH": {}, "TITLE_ENGLISH_DESC": {},
	"TITLE_NATIVE": {}, "TITLE_NATIVE_DESC": {},
	"TYPE": {}, "TYPE_DESC": {},
	"FORMAT": {}, "FORMAT_DESC": {},
	"START_DATE": {}, "START_DATE_DESC": {},
	"END_DATE": {}, "END_DATE_DESC": {},
	"SCORE": {}, "SCORE_DESC": {},
	"POPULARITY": {}, "POPULARITY_DESC": {},
	"TRENDING": {}, "TRENDING_DESC": {},
	"EPISODES": {}, "EPISODES_DESC": {},
	"DURATION": {}, "DURATION_DESC": {},
	"STATUS": {}, "STATUS_DESC": {},
	"CHAPTERS": {}, "CHAPTERS_DESC": {},
	"VOLUMES": {}, "VOLUMES_DESC": {},
	"UPDATED_AT": {}, "UPDATED_AT_DESC": {},
	"SEARCH_MATCH": {},
	"FAVOURITES":   {}, "FAVOURITES_DESC": {},
}

// ValidSort reports whether s is a member of the MediaSort enum.
func ValidSort(s string) bool {
	_, ok := mediaSorts[s]
	return ok
}
