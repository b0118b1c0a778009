package iracing

import (
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
)

// searchEnvelope covers the three shapes search_series answers with: a
// signed link to the real payload, a data wrapper, or bare chunk_info.
type searchEnvelope struct {
	Link      string      `json:"link"`
	Expires   string      `json:"expires"`
	Data      *searchData `json:"data"`
	ChunkInfo *chunkInfo  `json:"chunk_info"`
}

type searchData struct {
	Success   bool       `json:"success"`
	ChunkInfo *chunkInfo `json:"chunk_info"`
}

type chunkInfo struct {
	ChunkSize       int      `json:"chunk_size"`
	NumChunks       int      `json:"num_chunks"`
	Rows            int      `json:"rows"`
	BaseDownloadURL string   `json:"base_download_url"`
	ChunkFileNames  []string `json:"chunk_file_names"`
}

func (e searchEnvelope) chunkInfo() *chunkInfo {
	if e.Data != nil && e.Data.ChunkInfo != nil {
		return e.Data.ChunkInfo
	}
	return e.ChunkInfo
}

// sessionRecord is the strict wire shape of one chunk row. Unknown keys are
// ignored, but a known key holding the wrong JSON type fails decoding.
type sessionRecord struct {
	SessionID            int64      `json:"session_id" validate:"gt=0"`
	SubsessionID         int64      `json:"subsession_id" validate:"gt=0"`
	SeriesID             int64      `json:"series_id" validate:"gt=0"`
	SeasonID             int64      `json:"season_id" validate:"gte=0"`
	SeriesName           string     `json:"series_name"`
	SeriesShortName      string     `json:"series_short_name"`
	Track                trackRef   `json:"track"`
	SeasonYear           int        `json:"season_year" validate:"gt=0"`
	SeasonQuarter        int        `json:"season_quarter" validate:"min=1,max=4"`
	RaceWeekNum          int        `json:"race_week_num" validate:"gte=0"`
	NumDrivers           int        `json:"num_drivers" validate:"gte=0"`
	EventStrengthOfField int        `json:"event_strength_of_field" validate:"gte=0"`
	OfficialSession      bool       `json:"official_session"`
	StartTime            *time.Time `json:"start_time" validate:"required"`
}

type trackRef struct {
	TrackID    int64  `json:"track_id"`
	TrackName  string `json:"track_name"`
	ConfigName string `json:"config_name"`
}

func (r sessionRecord) toDomain() racestats.RawSessionRecord {
	name := r.SeriesName
	if name == "" {
		name = r.SeriesShortName
	}
	out := racestats.RawSessionRecord{
		SessionID:            r.SessionID,
		SubsessionID:         r.SubsessionID,
		SeriesID:             r.SeriesID,
		SeasonID:             r.SeasonID,
		SeriesName:           name,
		TrackName:            r.Track.TrackName,
		SeasonYear:           r.SeasonYear,
		SeasonQuarter:        r.SeasonQuarter,
		RaceWeekNum:          r.RaceWeekNum,
		NumDrivers:           r.NumDrivers,
		EventStrengthOfField: r.EventStrengthOfField,
		OfficialSession:      r.OfficialSession,
	}
	if r.StartTime != nil {
		out.StartTime = r.StartTime.UTC()
	}
	return out
}
