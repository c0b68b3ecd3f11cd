package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/glebovdev/radioplayer/internal/metadata"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"
)

const (
	NetworkReadSize = 4096
	eventBufferSize = 64
)

// Relies on context cancellation to clean up the spawned read goroutine.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		select {
		case done <- result{n, err}:
		case <-cr.ctx.Done():
		}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}

// liveStream is the network side of a player: it demuxes ICY metadata out of the
// HTTP body and pipes the remaining audio bytes to the decoder.
type liveStream struct {
	ctx        context.Context
	cancel     context.CancelFunc
	body       io.ReadCloser
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	metaint    int

	decoder beep.StreamSeekCloser
	format  beep.Format

	wg        sync.WaitGroup
	closeOnce sync.Once

	emitMu sync.Mutex
	closed bool
	events chan Event
}

func newLiveStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, metaint int) *liveStream {
	pr, pw := io.Pipe()
	return &liveStream{
		ctx:        ctx,
		cancel:     cancel,
		body:       body,
		pipeReader: pr,
		pipeWriter: pw,
		metaint:    metaint,
		events:     make(chan Event, eventBufferSize),
	}
}

func (s *liveStream) start() {
	timeoutBody := &contextReader{
		reader:  s.body,
		ctx:     s.ctx,
		timeout: ReadTimeout,
	}

	s.wg.Add(1)
	go s.readNetworkStream(timeoutBody)
}

// emit never blocks; events are dropped when nobody drains the channel.
func (s *liveStream) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("event", ev.Kind.String()).Msg("Player event dropped, channel full")
	}
}

func (s *liveStream) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.body.Close()
		s.pipeWriter.CloseWithError(io.ErrClosedPipe)
		s.pipeReader.Close()
		if s.decoder != nil {
			s.decoder.Close()
		}
		s.wg.Wait()

		s.emitMu.Lock()
		s.closed = true
		close(s.events)
		s.emitMu.Unlock()
	})
}

func (s *liveStream) readNetworkStream(bodyReader io.Reader) {
	var exitErr error

	defer func() {
		if exitErr != nil {
			s.pipeWriter.CloseWithError(exitErr)
		} else {
			s.pipeWriter.Close()
		}
		s.wg.Done()
		log.Debug().Msg("Network stream reader stopped")
	}()

	chunkSize := int64(s.metaint)
	if chunkSize == 0 {
		chunkSize = NetworkReadSize
	}

	bufReader := bufio.NewReader(bodyReader)

	for {
		if s.ctx.Err() != nil {
			return
		}

		_, err := io.CopyN(s.pipeWriter, bufReader, chunkSize)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			if err == io.EOF {
				exitErr = io.ErrUnexpectedEOF
			} else {
				log.Error().Err(err).Msg("Error reading audio data from stream")
				exitErr = fmt.Errorf("network read error: %w", err)
			}
			return
		}

		if s.metaint == 0 {
			continue
		}

		title, err := readICYBlock(bufReader)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Error reading metadata block")
			exitErr = err
			return
		}
		if title != nil {
			s.emit(Event{Kind: EventMetadata, Metadata: *title})
		}
	}
}

// readICYBlock consumes one length-prefixed metadata block and returns its StreamTitle.
func readICYBlock(r *bufio.Reader) (*string, error) {
	metaLenByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("metadata read error: %w", err)
	}

	metaLen := int(metaLenByte) * 16
	if metaLen == 0 {
		return nil, nil
	}

	block := make([]byte, metaLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, fmt.Errorf("metadata content error: %w", err)
	}

	title, ok := metadata.StreamTitle(block)
	if !ok {
		log.Debug().Str("block", strings.TrimRight(string(block), "\x00")).Msg("ICY block without StreamTitle")
		return nil, nil
	}
	return &title, nil
}
