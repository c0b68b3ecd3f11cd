package nowplaying

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/rs/zerolog/log"
)

// DefaultLookupTimeout bounds one artwork cascade.
const DefaultLookupTimeout = 20 * time.Second

// ArtworkSearcher maps an artist and title to an artwork URL.
type ArtworkSearcher interface {
	SearchArtwork(ctx context.Context, artist, title string) (string, error)
}

// ImageFetcher downloads and decodes an image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, error)
}

// Publisher pushes base info to a Sink immediately and resolves artwork in the background.
// Resolved artwork is merged into whatever snapshot is current when it arrives.
type Publisher struct {
	sink     Sink
	searcher ArtworkSearcher
	fetcher  ImageFetcher
	timeout  time.Duration

	// writeMu orders sink writes; each write reads the snapshot under mu at write time.
	writeMu sync.Mutex

	mu        sync.Mutex
	current   *Info
	key       string
	gen       uint64
	cancel    context.CancelFunc
	onArtwork func(image.Image)

	wg sync.WaitGroup
}

// NewPublisher creates a Publisher. searcher and fetcher may be nil, in which case the
// cascade skips the stages that need them.
func NewPublisher(sink Sink, searcher ArtworkSearcher, fetcher ImageFetcher) *Publisher {
	return &Publisher{
		sink:     sink,
		searcher: searcher,
		fetcher:  fetcher,
		timeout:  DefaultLookupTimeout,
	}
}

// SetLookupTimeout overrides DefaultLookupTimeout.
func (p *Publisher) SetLookupTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

// OnArtwork registers a callback for resolved artwork. It runs on the lookup goroutine.
func (p *Publisher) OnArtwork(fn func(image.Image)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onArtwork = fn
}

func lookupKey(st station.Station, track station.Track) string {
	return st.ID + "\x00" + st.StreamURL + "\x00" + track.Artist + "\x00" + track.Title
}

// Publish pushes base info for st and track. Artwork is looked up again only when the
// station or track content changed since the previous call.
func (p *Publisher) Publish(st station.Station, track station.Track, rate float64) {
	p.mu.Lock()

	info := &Info{
		Title:        track.Title,
		Artist:       track.Artist,
		Album:        track.Album,
		StationName:  st.Name,
		IsLiveStream: true,
		Rate:         rate,
	}

	key := lookupKey(st, track)
	changed := key != p.key
	if !changed && p.current != nil {
		info.Artwork = p.current.Artwork
	}
	p.current = info

	var ctx context.Context
	var gen uint64
	if changed {
		if p.cancel != nil {
			p.cancel()
		}
		p.key = key
		p.gen++
		gen = p.gen
		ctx, p.cancel = context.WithTimeout(context.Background(), p.timeout)
	}
	p.mu.Unlock()

	p.push()

	if changed {
		searchable := !track.SameContent(station.PlaceholderTrack(st)) && (track.Artist != "" || track.Title != "")
		p.wg.Add(1)
		go p.resolve(ctx, gen, st, track, searchable)
	}
}

// SetRate updates the playback rate of the current snapshot.
func (p *Publisher) SetRate(rate float64) {
	p.mu.Lock()
	if p.current == nil || p.current.Rate == rate {
		p.mu.Unlock()
		return
	}
	p.current.Rate = rate
	p.mu.Unlock()

	p.push()
}

// Clear removes the now-playing info and abandons any pending artwork lookup.
func (p *Publisher) Clear() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.key = ""
	p.current = nil
	p.mu.Unlock()

	p.push()
}

func (p *Publisher) push() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	var snapshot *Info
	if p.current != nil {
		cp := *p.current
		snapshot = &cp
	}
	p.mu.Unlock()

	p.sink.SetNowPlaying(snapshot)
}

// Current returns the latest snapshot pushed to the sink.
func (p *Publisher) Current() (Info, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Info{}, false
	}
	return *p.current, true
}

// Wait blocks until all in-flight artwork lookups have finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) resolve(ctx context.Context, gen uint64, st station.Station, track station.Track, searchable bool) {
	defer p.wg.Done()

	img := p.cascade(ctx, st, track, searchable)
	if img == nil || ctx.Err() == context.Canceled {
		return
	}

	p.mu.Lock()
	if gen != p.gen || p.current == nil {
		p.mu.Unlock()
		log.Debug().Str("station", st.ID).Msg("Dropping stale artwork")
		return
	}
	p.current.Artwork = img
	onArtwork := p.onArtwork
	p.mu.Unlock()

	p.push()
	if onArtwork != nil {
		onArtwork(img)
	}
}

func (p *Publisher) cascade(ctx context.Context, st station.Station, track station.Track, searchable bool) image.Image {
	if searchable && p.searcher != nil && p.fetcher != nil {
		url, err := p.searcher.SearchArtwork(ctx, track.Artist, track.Title)
		if err == nil && url != "" {
			img, err := p.fetcher.FetchImage(ctx, url)
			if err == nil && img != nil {
				return img
			}
			log.Debug().Err(err).Str("url", url).Msg("Artwork image fetch failed")
		} else if err != nil {
			log.Debug().Err(err).Str("track", track.String()).Msg("Artwork search failed")
		}
	}

	if ctx.Err() == context.Canceled {
		return nil
	}

	if logo := st.ArtworkURL(); logo != "" && p.fetcher != nil {
		img, err := p.fetcher.FetchImage(ctx, logo)
		if err == nil && img != nil {
			return img
		}
		log.Debug().Err(err).Str("url", logo).Msg("Station logo fetch failed")
	}

	if ctx.Err() == context.Canceled {
		return nil
	}

	return DefaultArtwork()
}
