package types

// HistoryEntry records one successfully started download.
// Entries are never modified after creation.
type HistoryEntry struct {
	ID   int64  `json:"id"`
	URL  string `json:"url"`
	Mode Mode   `json:"mode"`
	Date string `json:"date"`
	Time string `json:"time"`
}
