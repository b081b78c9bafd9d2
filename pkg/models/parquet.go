package models

// EntryRecord is a row of exported parquet file. Optional fields of LogEntry
// are stored as empty string because analytics engines (e.g. Athena) treat
// them same as NULL in most queries.
type EntryRecord struct {
	// Timestamp is unixtime (second) of the request in UTC.
	Timestamp     int64  `parquet:"name=timestamp, type=INT64" json:"timestamp"`
	File          string `parquet:"name=file, type=UTF8, encoding=PLAIN_DICTIONARY" json:"file"`
	RemoteHost    string `parquet:"name=remote_host, type=UTF8, encoding=PLAIN_DICTIONARY" json:"remote_host"`
	ClientID      string `parquet:"name=client_id, type=UTF8, encoding=PLAIN_DICTIONARY" json:"client_id"`
	UserID        string `parquet:"name=user_id, type=UTF8, encoding=PLAIN_DICTIONARY" json:"user_id"`
	Request       string `parquet:"name=request, type=UTF8, encoding=PLAIN_DICTIONARY" json:"request"`
	Path          string `parquet:"name=path, type=UTF8, encoding=PLAIN_DICTIONARY" json:"path"`
	Status        int32  `parquet:"name=status, type=INT32" json:"status"`
	BytesReturned int64  `parquet:"name=bytes_returned, type=INT64" json:"bytes_returned"`
	Referer       string `parquet:"name=referer, type=UTF8, encoding=PLAIN_DICTIONARY" json:"referer"`
	UserAgent     string `parquet:"name=user_agent, type=UTF8, encoding=PLAIN_DICTIONARY" json:"user_agent"`
	SessionID     string `parquet:"name=session_id, type=UTF8, encoding=PLAIN_DICTIONARY" json:"session_id"`
	IsPage        bool   `parquet:"name=is_page, type=BOOLEAN" json:"is_page"`
	IsRobot       bool   `parquet:"name=is_robot, type=BOOLEAN" json:"is_robot"`
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewEntryRecord converts LogEntry to EntryRecord
func NewEntryRecord(entry *LogEntry) *EntryRecord {
	return &EntryRecord{
		Timestamp:     entry.Timestamp.UTC().Unix(),
		File:          entry.FileID,
		RemoteHost:    entry.RemoteHost,
		ClientID:      entry.ClientID,
		UserID:        entry.UserID,
		Request:       entry.Request,
		Path:          entry.Path,
		Status:        int32(entry.Status),
		BytesReturned: entry.BytesReturned,
		Referer:       derefString(entry.Referer),
		UserAgent:     derefString(entry.UserAgent),
		SessionID:     derefString(entry.SessionID),
		IsPage:        entry.IsPage,
		IsRobot:       entry.IsRobot,
	}
}
