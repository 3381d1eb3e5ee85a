package extract

import (
	"encoding/json"
	"strconv"
)

// The mobile site embeds loosely-typed JSON blobs in data-store attributes.
// Each known blob shape gets its own variant here, parsed defensively with
// explicit field-absent handling; unknown shapes simply fail to parse.

// actorBlob carries an explicit numeric actor id, e.g.
// {"actorID":100012345} or {"actor_id":"100012345"}.
type actorBlob struct {
	ActorID int64
}

// videoBlob carries the playable source of a video attachment, e.g.
// {"type":"video","src":"https://video.example/v.mp4"}.
type videoBlob struct {
	Src string
}

// shareBlob carries the share target of a photo/image-post attachment, e.g.
// {"shareURI":"/photo.php?fbid=123"}.
type shareBlob struct {
	URI string
}

// flexInt64 accepts both JSON numbers and numeric strings, which the site
// uses interchangeably.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt64(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

func parseActorBlob(raw string) (actorBlob, bool) {
	var fields struct {
		ActorID      *flexInt64 `json:"actorID"`
		ActorIDSnake *flexInt64 `json:"actor_id"`
		ID           *flexInt64 `json:"id"`
	}
	if json.Unmarshal([]byte(raw), &fields) != nil {
		return actorBlob{}, false
	}
	switch {
	case fields.ActorID != nil:
		return actorBlob{ActorID: int64(*fields.ActorID)}, true
	case fields.ActorIDSnake != nil:
		return actorBlob{ActorID: int64(*fields.ActorIDSnake)}, true
	case fields.ID != nil:
		return actorBlob{ActorID: int64(*fields.ID)}, true
	}
	return actorBlob{}, false
}

func parseVideoBlob(raw string) (videoBlob, bool) {
	var fields struct {
		Src      *string `json:"src"`
		VideoURL *string `json:"videoURL"`
	}
	if json.Unmarshal([]byte(raw), &fields) != nil {
		return videoBlob{}, false
	}
	switch {
	case fields.Src != nil && *fields.Src != "":
		return videoBlob{Src: *fields.Src}, true
	case fields.VideoURL != nil && *fields.VideoURL != "":
		return videoBlob{Src: *fields.VideoURL}, true
	}
	return videoBlob{}, false
}

func parseShareBlob(raw string) (shareBlob, bool) {
	var fields struct {
		ShareURI *string `json:"shareURI"`
		URI      *string `json:"uri"`
	}
	if json.Unmarshal([]byte(raw), &fields) != nil {
		return shareBlob{}, false
	}
	switch {
	case fields.ShareURI != nil && *fields.ShareURI != "":
		return shareBlob{URI: *fields.ShareURI}, true
	case fields.URI != nil && *fields.URI != "":
		return shareBlob{URI: *fields.URI}, true
	}
	return shareBlob{}, false
}
