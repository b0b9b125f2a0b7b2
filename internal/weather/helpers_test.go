package weather_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

// glog, pulled in through badger by the cache package, starts its flush
// daemon at init.
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, leakOptions...)
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// currentDoc renders a minimal OpenWeatherMap current weather document.
func currentDoc(tempK float64, main string) []byte {
	return []byte(fmt.Sprintf(`{"name":"upstream-name","main":{"temp":%v,"feels_like":%v,"humidity":50,"pressure":1012},`+
		`"wind":{"speed":3.5},"visibility":10000,"weather":[{"main":%q,"description":"some %s"}]}`,
		tempK, tempK, main, main))
}

// fakeUpstream serves canned documents and counts calls per (kind, city).
type fakeUpstream struct {
	mu    sync.Mutex
	docs  map[string][]byte
	fail  map[string]error
	calls map[string]int
	delay time.Duration
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		docs:  make(map[string][]byte),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeUpstream) set(kind weather.Kind, city string, doc []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[weather.CacheKey(kind, city)] = doc
}

func (f *fakeUpstream) failWith(kind weather.Kind, city string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[weather.CacheKey(kind, city)] = err
}

func (f *fakeUpstream) Fetch(ctx context.Context, kind weather.Kind, city string) ([]byte, error) {
	key := weather.CacheKey(kind, city)
	f.mu.Lock()
	f.calls[key]++
	doc, err := f.docs[key], f.fail[key]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, &weather.UpstreamError{Kind: kind, City: city, StatusCode: 503, Err: err}
	}
	if doc == nil {
		return nil, &weather.UpstreamError{Kind: kind, City: city, StatusCode: 404, Err: errors.New("city not found")}
	}
	return doc, nil
}

func (f *fakeUpstream) callCount(kind weather.Kind, city string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[weather.CacheKey(kind, city)]
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBoom }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBoom
}
