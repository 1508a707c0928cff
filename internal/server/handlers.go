package server

import (
	"net/http"
	"net/url"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// songInfo is the /get-song-info payload. The timestamp travels as a string
// so clients with float-only numbers keep every digit.
type songInfo struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Playing     bool   `json:"playing"`
	Timestamp   string `json:"timestamp"`
	SongChanged bool   `json:"song_changed"`
}

// handleSongInfo answers immediately for a missing or invalid token, and
// otherwise blocks until the playback version moves away from it or the
// request timeout passes.
func (s *Server) handleSongInfo(c *gin.Context) {
	since, ok := domain.ParseVersion(versionToken(c.Request.URL))
	if !ok {
		c.JSON(http.StatusOK, newSongInfo(s.store.Snapshot(), true))
		return
	}

	snap, changed := s.store.WaitForChange(c.Request.Context(), since, s.cfg.GetRequestTimeout())
	if !changed {
		s.logger.Debug("Long-poll ended without change",
			zap.String("requestID", c.GetString(requestIDKey)),
			zap.Stringer("since", since))
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, newSongInfo(snap, since < snap.SongVersion))
}

// handleArtwork returns the artwork of the current song, or an empty body
func (s *Server) handleArtwork(c *gin.Context) {
	art := s.store.Artwork()
	if art.IsEmpty() {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, art.MimeType, art.Data)
}

func newSongInfo(st domain.PlayerState, songChanged bool) songInfo {
	return songInfo{
		Title:       st.Title,
		Artist:      st.Artist,
		Playing:     st.Playing,
		Timestamp:   st.PlaybackVersion.String(),
		SongChanged: songChanged,
	}
}

// versionToken accepts both "?timestamp=<token>" and the bare "?<token>"
// form sent by the bundled UI script
func versionToken(u *url.URL) string {
	query := u.Query()
	if query.Has("timestamp") {
		return query.Get("timestamp")
	}
	raw, err := url.QueryUnescape(u.RawQuery)
	if err != nil {
		return ""
	}
	return raw
}
