package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/glebovdev/radioplayer/internal/audio"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/rs/zerolog/log"
)

const (
	PlaylistTimeout = 10 * time.Second
	ReadTimeout     = 5 * time.Second
)

var mp3ContentTypes = map[string]bool{
	"audio/mpeg":               true,
	"audio/mp3":                true,
	"audio/x-mpeg":             true,
	"audio/mpeg3":              true,
	"audio/x-mp3":              true,
	"application/octet-stream": true,
}

type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

func isNonRetryableError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403, 404, 410:
			return true
		}
	}
	return false
}

// HTTPLoader opens HTTP(S) audio streams, resolving .pls and .m3u playlists first.
type HTTPLoader struct {
	httpClient *http.Client
	output     audio.Output
	userAgent  string
}

func NewHTTPLoader(output audio.Output) *HTTPLoader {
	httpClient := &http.Client{
		Timeout: 0, // Streams are long-lived, so no overall timeout
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
	}

	return &HTTPLoader{
		httpClient: httpClient,
		output:     output,
		userAgent:  fmt.Sprintf("%s/%s", config.AppUserAgent, config.AppVersion),
	}
}

// LoadAsset opens the stream at rawURL. The stream stays open for as long as ctx lives
// or until the asset (or its player) is closed. Definitive failures wrap ErrNotPlayable.
func (l *HTTPLoader) LoadAsset(ctx context.Context, rawURL string) (Asset, error) {
	candidates := []string{rawURL}
	if isPlaylistURL(rawURL) {
		plCtx, cancel := context.WithTimeout(ctx, PlaylistTimeout)
		urls, err := l.fetchPlaylist(plCtx, rawURL)
		cancel()
		if err != nil {
			if isNonRetryableError(err) {
				return nil, fmt.Errorf("%w: %v", ErrNotPlayable, err)
			}
			return nil, err
		}
		candidates = urls
		log.Debug().Msgf("Found %d stream URLs in playlist", len(urls))
	}

	var errs []string
	allDefinitive := true
	for i, streamURL := range candidates {
		log.Debug().Msgf("Trying stream %d/%d: %s", i+1, len(candidates), streamURL)

		asset, err := l.open(ctx, streamURL)
		if err == nil {
			return asset, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNotPlayable) {
			allDefinitive = false
		}
		errs = append(errs, fmt.Sprintf("%s: %v", streamURL, err))
	}

	joined := strings.Join(errs, "; ")
	if allDefinitive {
		return nil, fmt.Errorf("%w: %s", ErrNotPlayable, joined)
	}
	return nil, fmt.Errorf("all streams failed: %s", joined)
}

func (l *HTTPLoader) open(parent context.Context, streamURL string) (Asset, error) {
	ctx, cancel := context.WithCancel(parent)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrNotPlayable, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch stream: %w", err)
	}

	log.Debug().Msgf("Stream response status: %d, Content-Type: %s", resp.StatusCode, resp.Header.Get("Content-Type"))

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if isNonRetryableError(statusErr) {
			return nil, fmt.Errorf("%w: %v", ErrNotPlayable, statusErr)
		}
		return nil, statusErr
	}

	info := streamInfoFromHeader(resp.Header)

	if !isMP3ContentType(resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		cancel()
		log.Warn().Str("contentType", resp.Header.Get("Content-Type")).Msg("Unsupported stream format")
		return &httpAsset{url: streamURL, info: info}, nil
	}

	s := newLiveStream(ctx, cancel, resp.Body, info.MetaInt)
	s.start()

	decoder, format, err := mp3.Decode(s.pipeReader)
	if err != nil {
		s.close()
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		log.Warn().Err(err).Msg("Failed to decode MP3 stream")
		return &httpAsset{url: streamURL, info: info}, nil
	}

	info.SampleRate = int(format.SampleRate)
	s.decoder = decoder
	s.format = format

	return &httpAsset{
		url:      streamURL,
		info:     info,
		playable: true,
		stream:   s,
		output:   l.output,
	}, nil
}

func streamInfoFromHeader(h http.Header) StreamInfo {
	info := StreamInfo{
		Name:   h.Get("icy-name"),
		Format: "MP3",
	}
	if br := h.Get("icy-br"); br != "" {
		// Some servers send "128,128".
		if n, err := strconv.Atoi(strings.Split(br, ",")[0]); err == nil {
			info.Bitrate = n
		}
	}
	if mi := h.Get("icy-metaint"); mi != "" {
		if n, err := strconv.Atoi(mi); err == nil && n > 0 {
			info.MetaInt = n
			log.Debug().Msgf("ICY metadata interval: %d bytes", n)
		}
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	if strings.Contains(ct, "aac") {
		info.Format = "AAC"
	} else if strings.Contains(ct, "ogg") {
		info.Format = "OGG"
	}
	return info
}

func isMP3ContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mp3ContentTypes[strings.ToLower(mediaType)]
}

func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pls", ".m3u":
		return true
	}
	return false
}

func (l *HTTPLoader) fetchPlaylist(ctx context.Context, playlistURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return parsePlaylist(resp.Body)
}

// parsePlaylist reads stream URLs from PLS ("FileN=") or M3U (bare URL lines) content.
func parsePlaylist(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "["):
			continue
		case strings.HasPrefix(line, "File") && strings.Contains(line, "="):
			parts := strings.SplitN(line, "=", 2)
			if u := strings.TrimSpace(parts[1]); u != "" {
				urls = append(urls, u)
			}
		case strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://"):
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading playlist: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no valid stream URL found in playlist", ErrNotPlayable)
	}

	return urls, nil
}

type httpAsset struct {
	url      string
	info     StreamInfo
	playable bool
	stream   *liveStream
	output   audio.Output
	claimed  bool
}

func (a *httpAsset) URL() string      { return a.url }
func (a *httpAsset) Playable() bool   { return a.playable }
func (a *httpAsset) Info() StreamInfo { return a.info }

// NewPlayer hands the open stream to a new player. An asset backs at most one player.
func (a *httpAsset) NewPlayer(opts Options) (Player, error) {
	if !a.playable {
		return nil, ErrNotPlayable
	}
	if a.claimed {
		return nil, errors.New("asset already has a player")
	}
	a.claimed = true
	return newStreamPlayer(a.stream, a.output, opts), nil
}

func (a *httpAsset) Close() error {
	if a.stream != nil && !a.claimed {
		a.stream.close()
	}
	return nil
}
